// Package notify tells the outside world that a book became visible in the
// catalog. Delivery itself (email, chat) happens elsewhere.
package notify

import (
	"context"
	"strings"

	"github.com/openbookcatalog/catalog/pkg/models"
	"github.com/robinjoseph08/golib/logger"
)

// Event is passed to a Notifier after the book has been committed.
type Event struct {
	Book     *models.Book
	Uploader *models.User
}

type Notifier interface {
	BookVisible(ctx context.Context, event Event) error
}

// Template is the flat projection handed to message templates.
type Template struct {
	Title     string `json:"title"`
	Copyright string `json:"copyright"`
	License   string `json:"license"`
	Uploader  string `json:"uploader"`
	URL       string `json:"url"`
	Subject   string `json:"subject"`
}

// TemplateData projects a book into template fields. Missing values are
// reported explicitly as unknown instead of being left blank.
func TemplateData(book *models.Book, uploader *models.User, baseURL string) Template {
	t := Template{
		Title:     orUnknown(book.Title, "title"),
		Copyright: orUnknown(deref(book.Copyright), "copyright"),
		License:   orUnknown(deref(book.License), "license"),
		Uploader:  "unknown uploader",
	}
	if uploader != nil && uploader.Username != "" {
		t.Uploader = uploader.Username
	}
	t.URL = strings.TrimSuffix(baseURL, "/") + "/" + book.ID
	t.Subject = t.Uploader + " added " + t.Title
	return t
}

// LogNotifier only writes the event to the log. It is used when no webhook
// is configured.
type LogNotifier struct {
	BaseURL string
}

func (n *LogNotifier) BookVisible(ctx context.Context, event Event) error {
	data := TemplateData(event.Book, event.Uploader, n.BaseURL)
	logger.FromContext(ctx).Info("book visible", logger.Data{
		"book_id":  event.Book.ID,
		"title":    data.Title,
		"uploader": data.Uploader,
		"url":      data.URL,
	})
	return nil
}

func orUnknown(v, property string) string {
	if v == "" {
		return "unknown " + property
	}
	return v
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
