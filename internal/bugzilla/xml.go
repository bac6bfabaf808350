package bugzilla

import (
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/danielolaszy/bz2gl/pkg/models"
)

// xmlExport is the document returned by show_bug.cgi?ctype=xml.
type xmlExport struct {
	XMLName xml.Name `xml:"bugzilla"`
	URLBase string   `xml:"urlbase,attr"`
	Bugs    []xmlBug `xml:"bug"`
}

type xmlBug struct {
	Error       string          `xml:"error,attr"`
	ID          int             `xml:"bug_id"`
	CreatedAt   string          `xml:"creation_ts"`
	Title       string          `xml:"short_desc"`
	UpdatedAt   string          `xml:"delta_ts"`
	Product     string          `xml:"product"`
	Component   string          `xml:"component"`
	Version     string          `xml:"version"`
	Platform    string          `xml:"rep_platform"`
	OpSys       string          `xml:"op_sys"`
	Status      string          `xml:"bug_status"`
	Resolution  string          `xml:"resolution"`
	Reporter    string          `xml:"reporter"`
	AssignedTo  string          `xml:"assigned_to"`
	Comments    []xmlComment    `xml:"long_desc"`
	Attachments []xmlAttachment `xml:"attachment"`
}

type xmlComment struct {
	Who    string `xml:"who"`
	When   string `xml:"bug_when"`
	Text   string `xml:"thetext"`
	Attach int    `xml:"attachid"`
}

type xmlAttachment struct {
	Obsolete int     `xml:"isobsolete,attr"`
	ID       int     `xml:"attachid"`
	Filename string  `xml:"filename"`
	Data     xmlData `xml:"data"`
}

type xmlData struct {
	Encoding string `xml:"encoding,attr"`
	Value    string `xml:",chardata"`
}

// timeLayouts are the timestamp formats Bugzilla has used in XML exports.
var timeLayouts = []string{
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04:05 MST",
	"2006-01-02 15:04 -0700",
	"2006-01-02 15:04 MST",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ParseTime parses a Bugzilla timestamp.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized bugzilla timestamp %q", s)
}

// Decode reads a Bugzilla XML export and returns every bug it contains.
func Decode(r io.Reader) ([]*models.BugRecord, error) {
	var export xmlExport
	if err := xml.NewDecoder(r).Decode(&export); err != nil {
		return nil, fmt.Errorf("failed to decode bugzilla xml: %w", err)
	}

	bugs := make([]*models.BugRecord, 0, len(export.Bugs))
	for _, b := range export.Bugs {
		bug, err := b.toModel()
		if err != nil {
			return nil, err
		}
		bugs = append(bugs, bug)
	}
	return bugs, nil
}

func (b xmlBug) toModel() (*models.BugRecord, error) {
	if b.Error != "" {
		return nil, fmt.Errorf("bug %d: bugzilla returned %s", b.ID, b.Error)
	}

	created, err := ParseTime(b.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("bug %d: creation_ts: %w", b.ID, err)
	}

	bug := &models.BugRecord{
		ID:              b.ID,
		Title:           b.Title,
		Status:          b.Status,
		Resolution:      b.Resolution,
		CreatedAt:       created,
		Reporter:        strings.TrimSpace(b.Reporter),
		Assignee:        strings.TrimSpace(b.AssignedTo),
		Component:       b.Component,
		Version:         b.Version,
		OperatingSystem: b.OpSys,
		Platform:        b.Platform,
	}

	if b.UpdatedAt != "" {
		if bug.UpdatedAt, err = ParseTime(b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("bug %d: delta_ts: %w", b.ID, err)
		}
	}

	for i, c := range b.Comments {
		when, err := ParseTime(c.When)
		if err != nil {
			return nil, fmt.Errorf("bug %d: comment %d: %w", b.ID, i, err)
		}
		bug.Comments = append(bug.Comments, models.RawComment{
			Author:       strings.TrimSpace(c.Who),
			Body:         c.Text,
			CreatedAt:    when,
			AttachmentID: c.Attach,
		})
	}

	for _, a := range b.Attachments {
		att := models.RawAttachment{
			ID:       a.ID,
			Filename: a.Filename,
			Obsolete: a.Obsolete != 0,
		}
		if a.Data.Encoding == "base64" && strings.TrimSpace(a.Data.Value) != "" {
			data, err := base64.StdEncoding.DecodeString(stripSpace(a.Data.Value))
			if err != nil {
				return nil, fmt.Errorf("bug %d: attachment %d: %w", b.ID, a.ID, err)
			}
			att.Data = data
		}
		bug.Attachments = append(bug.Attachments, att)
	}

	return bug, nil
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\n', '\r', '\t':
			return -1
		}
		return r
	}, s)
}
