package diagnostics

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"sjsage522/bidsniper/logger"
)

const stampLayout = "20060102_150405"

// maxNameTries bounds the suffixes tried when a dump name is taken
const maxNameTries = 100

// stamp renders t with milliseconds, e.g. 20240520_140305_123
func stamp(t time.Time) string {
	return fmt.Sprintf("%s_%03d", t.Format(stampLayout), t.Nanosecond()/int(time.Millisecond))
}

// PageContent is what gets written for a page dump
type PageContent struct {
	Site  string
	URL   string
	Title string
	Text  string
	HTML  string
}

// Dumper writes timestamped diagnostic files. Every write is best effort:
// failures are logged and an empty path is returned.
type Dumper struct {
	dir string
	now func() time.Time
	log *logger.Logger
}

// NewDumper creates a dumper writing into dir. An empty dir disables dumps.
func NewDumper(dir string, log *logger.Logger) *Dumper {
	if log == nil {
		log = logger.Nop()
	}
	return &Dumper{dir: dir, now: time.Now, log: log}
}

// Enabled reports whether dumps are written
func (d *Dumper) Enabled() bool {
	return d != nil && d.dir != ""
}

// Page writes a text dump of the page as <Site>_PageContent_<stamp>.txt
func (d *Dumper) Page(p PageContent) string {
	if !d.Enabled() {
		return ""
	}
	now := d.now()

	var b strings.Builder
	fmt.Fprintf(&b, "=== Page content - %s ===\n", now.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "URL: %s\n", p.URL)
	fmt.Fprintf(&b, "Title: %s\n", p.Title)
	fmt.Fprintf(&b, "Site: %s\n\n", p.Site)
	b.WriteString("=== Visible text ===\n")
	b.WriteString(p.Text)
	b.WriteString("\n\n=== HTML source ===\n")
	b.WriteString(p.HTML)
	b.WriteString("\n")

	return d.write(fmt.Sprintf("%s_PageContent_%s.txt", p.Site, stamp(now)), []byte(b.String()))
}

// Response writes a raw response body as <prefix>_Response_<stamp>.html
func (d *Dumper) Response(prefix, body string) string {
	if !d.Enabled() {
		return ""
	}
	return d.write(fmt.Sprintf("%s_Response_%s.html", prefix, stamp(d.now())), []byte(body))
}

// Screenshot writes png as <Site>_Screenshot_<stamp>.png
func (d *Dumper) Screenshot(site string, png []byte) string {
	if !d.Enabled() || len(png) == 0 {
		return ""
	}
	return d.write(fmt.Sprintf("%s_Screenshot_%s.png", site, stamp(d.now())), png)
}

// write creates name in the dump dir. A taken name gets a _2, _3, ...
// suffix so dumps of the same millisecond never overwrite each other.
func (d *Dumper) write(name string, data []byte) string {
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		d.log.Warn().Err(err).Str("dir", d.dir).Msg("failed to create diagnostics directory")
		return ""
	}

	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for i := 1; i <= maxNameTries; i++ {
		candidate := name
		if i > 1 {
			candidate = fmt.Sprintf("%s_%d%s", base, i, ext)
		}
		path := filepath.Join(d.dir, candidate)
		err := writeNew(path, data)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			d.log.Warn().Err(err).Str("file", path).Msg("failed to write diagnostics file")
			return ""
		}
		d.log.Debug().Str("file", path).Msg("diagnostics written")
		return path
	}
	d.log.Warn().Str("file", name).Msg("no free diagnostics file name")
	return ""
}

func writeNew(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
