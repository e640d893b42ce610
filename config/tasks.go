package config

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"sjsage522/bidsniper/internal/model"
	bserrors "sjsage522/bidsniper/pkg/errors"
)

// TaskSpec is one task entry of the task file. Unset fields take the
// configured defaults.
type TaskSpec struct {
	Name           string `yaml:"name"`
	URL            string `yaml:"url"`
	TriggerMs      *int   `yaml:"trigger_ms"`
	SprintStartSec *int   `yaml:"sprint_start_sec"`
	SprintFreqMs   *int   `yaml:"sprint_freq_ms"`
	RealBid        *bool  `yaml:"real_bid"`
	// MaxPrice is a decimal string; empty means no ceiling
	MaxPrice string `yaml:"max_price"`
	Delivery string `yaml:"delivery"`
	UsePost  bool   `yaml:"use_post"`
	// Manual bids right away instead of at the trigger offset
	Manual bool `yaml:"manual"`
}

type taskFile struct {
	Tasks []TaskSpec `yaml:"tasks"`
}

// Defaults returns the task config applied to entries that leave fields unset
func (c *Config) Defaults(rawURL string) model.TaskConfig {
	cfg := model.DefaultTaskConfig(rawURL)
	cfg.TriggerMs = c.DefaultTriggerMs
	cfg.SprintStartSec = c.DefaultSprintStartSec
	cfg.SprintFreqMs = c.DefaultSprintFreqMs
	cfg.RealBid = c.DefaultRealBid
	return cfg
}

// LoadTasks reads the task file. Files ending in .yaml or .yml hold a tasks
// list; any other file holds one auction url per line, # starting a comment.
func (c *Config) LoadTasks(path string) ([]*model.Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, bserrors.NewConfiguration("failed to read task file", err)
	}

	var specs []TaskSpec
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var f taskFile
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, bserrors.NewConfiguration("failed to parse task file", err)
		}
		specs = f.Tasks
	default:
		specs = parseURLList(data)
	}
	return c.BuildTasks(specs)
}

// BuildTasks validates specs and turns them into tasks
func (c *Config) BuildTasks(specs []TaskSpec) ([]*model.Task, error) {
	if len(specs) == 0 {
		return nil, bserrors.NewConfiguration("task file has no tasks", nil)
	}
	tasks := make([]*model.Task, 0, len(specs))
	for i, s := range specs {
		cfg, err := c.taskConfig(s)
		if err != nil {
			return nil, bserrors.NewConfiguration(fmt.Sprintf("task %d", i+1), err)
		}
		tasks = append(tasks, model.NewTask(cfg))
	}
	return tasks, nil
}

func (c *Config) taskConfig(s TaskSpec) (model.TaskConfig, error) {
	cfg := c.Defaults(strings.TrimSpace(s.URL))
	cfg.Name = s.Name
	if s.TriggerMs != nil {
		cfg.TriggerMs = *s.TriggerMs
	}
	if s.SprintStartSec != nil {
		cfg.SprintStartSec = *s.SprintStartSec
	}
	if s.SprintFreqMs != nil {
		cfg.SprintFreqMs = *s.SprintFreqMs
	}
	if s.RealBid != nil {
		cfg.RealBid = *s.RealBid
	}
	if s.MaxPrice != "" {
		p, err := decimal.NewFromString(strings.ReplaceAll(s.MaxPrice, ",", ""))
		if err != nil {
			return cfg, bserrors.NewValidation(s.Name, fmt.Sprintf("invalid max_price %q", s.MaxPrice))
		}
		cfg.MaxPrice = &p
	}
	if s.Delivery != "" {
		cfg.Delivery = s.Delivery
	}
	cfg.UsePost = s.UsePost
	cfg.Manual = s.Manual

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func parseURLList(data []byte) []TaskSpec {
	var specs []TaskSpec
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		specs = append(specs, TaskSpec{URL: line})
	}
	return specs
}
