// Package render prints client data for the command line as aligned text,
// JSON or YAML.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"educahub/internal/model"
)

// Format selects how a Printer writes values.
type Format string

const (
	Text Format = "text"
	JSON Format = "json"
	YAML Format = "yaml"
)

// ParseFormat validates a --output flag value.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case Text, JSON, YAML:
		return f, nil
	case "":
		return Text, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text, json or yaml)", s)
	}
}

// Printer writes client data to w in one format.
type Printer struct {
	w      io.Writer
	format Format
}

func New(w io.Writer, format Format) *Printer {
	return &Printer{w: w, format: format}
}

type sessionView struct {
	UserID     string    `json:"user_id" yaml:"user_id"`
	Name       string    `json:"name" yaml:"name"`
	Email      string    `json:"email" yaml:"email"`
	SignedInAt time.Time `json:"signed_in_at" yaml:"signed_in_at"`
}

type userView struct {
	ID    string `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	Email string `json:"email" yaml:"email"`
}

type categoryView struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

type postView struct {
	ID       string `json:"id" yaml:"id"`
	Title    string `json:"title" yaml:"title"`
	Category string `json:"category,omitempty" yaml:"category,omitempty"`
	Author   string `json:"author,omitempty" yaml:"author,omitempty"`
	Content  string `json:"content" yaml:"content"`
}

// Session prints the signed-in identity. The token is never printed.
func (p *Printer) Session(s *model.Session) error {
	if s == nil {
		if p.format == Text {
			_, err := fmt.Fprintln(p.w, "Not signed in.")
			return err
		}
		return p.encode(nil)
	}
	v := sessionView{UserID: string(s.UserID), Name: s.DisplayName, Email: s.Email, SignedInAt: s.SignedInAt}
	if p.format != Text {
		return p.encode(v)
	}
	tw := tabwriter.NewWriter(p.w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "User ID:\t%s\n", v.UserID)
	fmt.Fprintf(tw, "Name:\t%s\n", v.Name)
	fmt.Fprintf(tw, "Email:\t%s\n", v.Email)
	fmt.Fprintf(tw, "Signed in:\t%s\n", v.SignedInAt.Local().Format("2006-01-02 15:04:05"))
	return tw.Flush()
}

func (p *Printer) User(u *model.User) error {
	v := userView{ID: string(u.ID), Name: u.Name, Email: u.Email}
	if p.format != Text {
		return p.encode(v)
	}
	tw := tabwriter.NewWriter(p.w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID:\t%s\n", v.ID)
	fmt.Fprintf(tw, "Name:\t%s\n", v.Name)
	fmt.Fprintf(tw, "Email:\t%s\n", v.Email)
	return tw.Flush()
}

func (p *Printer) Categories(cats []model.Category) error {
	views := make([]categoryView, 0, len(cats))
	for _, c := range cats {
		views = append(views, categoryView{ID: string(c.ID), Name: c.Name})
	}
	if p.format != Text {
		return p.encode(views)
	}
	if len(views) == 0 {
		_, err := fmt.Fprintln(p.w, "No categories.")
		return err
	}
	tw := tabwriter.NewWriter(p.w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME")
	for _, v := range views {
		fmt.Fprintf(tw, "%s\t%s\n", v.ID, v.Name)
	}
	return tw.Flush()
}

// Posts prints a post table. Content is shown only in json and yaml.
func (p *Printer) Posts(posts []model.Post) error {
	views := make([]postView, 0, len(posts))
	for _, post := range posts {
		views = append(views, newPostView(post))
	}
	if p.format != Text {
		return p.encode(views)
	}
	if len(views) == 0 {
		_, err := fmt.Fprintln(p.w, "No posts found.")
		return err
	}
	tw := tabwriter.NewWriter(p.w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tCATEGORY\tAUTHOR")
	for _, v := range views {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", v.ID, truncate(v.Title, 48), v.Category, v.Author)
	}
	return tw.Flush()
}

// Post prints a single post with its content.
func (p *Printer) Post(post model.Post) error {
	v := newPostView(post)
	if p.format != Text {
		return p.encode(v)
	}
	tw := tabwriter.NewWriter(p.w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID:\t%s\n", v.ID)
	fmt.Fprintf(tw, "Title:\t%s\n", v.Title)
	fmt.Fprintf(tw, "Category:\t%s\n", v.Category)
	fmt.Fprintf(tw, "Author:\t%s\n", v.Author)
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(p.w, "\n%s\n", v.Content)
	return err
}

func (p *Printer) encode(v any) error {
	switch p.format {
	case JSON:
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case YAML:
		enc := yaml.NewEncoder(p.w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("cannot encode as %q", p.format)
	}
}

func newPostView(p model.Post) postView {
	category := p.CategoryName
	if category == "" {
		category = string(p.CategoryID)
	}
	return postView{
		ID:       string(p.ID),
		Title:    p.Title,
		Category: category,
		Author:   p.Author,
		Content:  p.Content,
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
