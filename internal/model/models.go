package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ID is a backend identifier. The API emits numeric ids on some routes and
// string ids on others, so both are accepted and kept as strings.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decoding id: %w", err)
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("decoding id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

// Session is the authenticated identity held by the client.
type Session struct {
	UserID      ID        `json:"id"`
	DisplayName string    `json:"name"`
	Email       string    `json:"email"`
	Token       string    `json:"token"`
	SignedInAt  time.Time `json:"signed_in_at"`
}

// Valid reports whether the session carries both an identity and a token.
func (s *Session) Valid() bool {
	return s != nil && s.UserID != "" && strings.TrimSpace(s.Token) != ""
}

// User is a profile record as returned by the backend.
type User struct {
	ID    ID     `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// UserUpdate is a partial user update. Nil fields are left out of the request.
type UserUpdate struct {
	Name     *string `json:"name,omitempty"`
	Email    *string `json:"email,omitempty"`
	Password *string `json:"password,omitempty"`
}

// Empty reports whether the update changes nothing.
func (u UserUpdate) Empty() bool {
	return u.Name == nil && u.Email == nil && u.Password == nil
}

// Category is a post category. The canonical shape is {id, name}; a bare
// string is accepted and used for both fields.
type Category struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`
}

func (c *Category) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decoding category: %w", err)
		}
		c.ID = ID(s)
		c.Name = s
		return nil
	}

	type plain Category
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("decoding category: %w", err)
	}
	*c = Category(p)
	if c.ID == "" {
		c.ID = ID(c.Name)
	}
	return nil
}

// Post is an educational post.
type Post struct {
	ID           ID     `json:"id"`
	Title        string `json:"title"`
	Content      string `json:"content"`
	CategoryID   ID     `json:"categoryId,omitempty"`
	CategoryName string `json:"categoryName,omitempty"`
	AuthorID     ID     `json:"userId,omitempty"`
	Author       string `json:"author,omitempty"`
}

// postWire covers every shape the backend has used for a post.
type postWire struct {
	ID           ID     `json:"id"`
	Title        string `json:"title"`
	Content      string `json:"content"`
	CategoryID   ID     `json:"categoryId"`
	CategoryName string `json:"categoryName"`
	Category     *struct {
		ID   ID     `json:"id"`
		Name string `json:"name"`
	} `json:"Category"`
	UserID ID     `json:"userId"`
	Author string `json:"author"`
}

func (p *Post) UnmarshalJSON(data []byte) error {
	var w postWire
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("decoding post: %w", err)
	}
	*p = Post{
		ID:           w.ID,
		Title:        w.Title,
		Content:      w.Content,
		CategoryID:   w.CategoryID,
		CategoryName: w.CategoryName,
		AuthorID:     w.UserID,
		Author:       w.Author,
	}
	if w.Category != nil {
		if p.CategoryName == "" {
			p.CategoryName = w.Category.Name
		}
		if p.CategoryID == "" {
			p.CategoryID = w.Category.ID
		}
	}
	return nil
}

func (p Post) RecordID() ID        { return p.ID }
func (p Post) RecordTitle() string { return p.Title }

// InCategory reports whether the post belongs to the category given by id or name.
func (p Post) InCategory(c string) bool {
	return (p.CategoryID != "" && string(p.CategoryID) == c) || (p.CategoryName != "" && p.CategoryName == c)
}

// PostDraft is the user-editable part of a post.
type PostDraft struct {
	Title      string
	Content    string
	CategoryID ID
}

// PostPayload is the request body for creating or updating a post.
type PostPayload struct {
	Title      string `json:"title"`
	Content    string `json:"content"`
	CategoryID ID     `json:"categoryId"`
	UserID     ID     `json:"userId"`
	Author     string `json:"author"`
}

// Filter selects posts by title substring and category.
// A zero Filter matches everything.
type Filter struct {
	Title    string
	Category string
}

// IsZero reports whether the filter matches everything.
func (f Filter) IsZero() bool {
	return f.Title == "" && f.Category == ""
}
