package migrate

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/danielolaszy/bz2gl/internal/config"
	"github.com/danielolaszy/bz2gl/internal/markdown"
	"github.com/danielolaszy/bz2gl/pkg/models"
)

// ExtendedDescriptionHeading introduces the folded first comment.
const ExtendedDescriptionHeading = "\n## Extended Description \n\n"

// submitterMarker precedes the real submitter in bugs filed by the
// auto-reporter account.
const submitterMarker = "Submitter was "

var firstToken = regexp.MustCompile(`^(\S*)`)

// Composer builds issue descriptions.
type Composer struct {
	cfg    *config.Config
	bugURL func(id int) string
}

// NewComposer creates a Composer. bugURL renders the source link of a bug.
func NewComposer(cfg *config.Config, bugURL func(id int) string) *Composer {
	return &Composer{cfg: cfg, bugURL: bugURL}
}

// Compose renders the key/value table describing bug, followed by the
// extended description when there is one. Only active attachments are
// listed.
func (c *Composer) Compose(bug *models.BugRecord, active []*Attachment, extended string) string {
	var b strings.Builder
	b.WriteString(markdown.TableHeader())

	if c.cfg.IncludeBugzillaLink && c.bugURL != nil {
		if link := c.bugURL(bug.ID); link != "" {
			b.WriteString(markdown.TableRow("Bugzilla Link", markdown.Link(strconv.Itoa(bug.ID), link)))
		}
	}

	b.WriteString(markdown.TableRow("Created on", markdown.FormatTime(bug.CreatedAt, c.cfg.DatetimeFormat)))

	if bug.Resolution != "" {
		b.WriteString(markdown.TableRow("Resolution", bug.Resolution))
		b.WriteString(markdown.TableRow("Resolved on", markdown.FormatTime(bug.UpdatedAt, c.cfg.DatetimeFormat)))
	}

	b.WriteString(markdown.TableRow("Version", bug.Version))
	b.WriteString(markdown.TableRow("OS", bug.OperatingSystem))
	b.WriteString(markdown.TableRow("Architecture", bug.Platform))

	if len(active) > 0 {
		tokens := make([]string, 0, len(active))
		for _, a := range active {
			tokens = append(tokens, a.String())
		}
		b.WriteString(markdown.TableRow("Attachments", strings.Join(tokens, ", ")))
	}

	if extended != "" {
		if reporter, ok := c.reporterAttribution(bug, extended); ok {
			b.WriteString(markdown.TableRow("Reporter", reporter))
		}
		b.WriteString(ExtendedDescriptionHeading)
		b.WriteString(markdown.Sanitize(extended))
	}

	return b.String()
}

// reporterAttribution names the real reporter when the issue will appear to
// come from a placeholder account.
func (c *Composer) reporterAttribution(bug *models.BugRecord, extended string) (string, bool) {
	if c.cfg.Bugzilla.AutoReporter != "" && bug.Reporter == c.cfg.Bugzilla.AutoReporter {
		return SubmitterFrom(extended)
	}

	if identity, ok := c.cfg.UserFor(bug.Reporter); ok && c.cfg.MiscUser != "" && identity == c.cfg.MiscUser {
		return bug.Reporter, true
	}

	return "", false
}

// SubmitterFrom extracts the token following the last "Submitter was "
// marker in text.
func SubmitterFrom(text string) (string, bool) {
	idx := strings.LastIndex(text, submitterMarker)
	if idx < 0 {
		return "", false
	}

	rest := text[idx+len(submitterMarker):]
	m := firstToken.FindStringSubmatch(rest)
	if m == nil {
		return "", false
	}
	return markdown.TrimPreformatted(m[1]), true
}
