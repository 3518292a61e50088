package migrations

import (
	"context"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

func init() {
	up := func(_ context.Context, db *bun.DB) error {
		_, err := db.Exec(`
			CREATE TABLE users (
				id TEXT PRIMARY KEY,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				username TEXT NOT NULL,
				email TEXT
			)
`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`
			CREATE TABLE languages (
				id TEXT PRIMARY KEY,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				iso_code TEXT NOT NULL,
				name TEXT NOT NULL,
				english_name TEXT,
				ethnologue_code TEXT,
				usage_count INTEGER NOT NULL DEFAULT 0
			)
`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE UNIQUE INDEX ux_languages_iso_code_name ON languages (iso_code, name)`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`
			CREATE TABLE tags (
				id TEXT PRIMARY KEY,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				name TEXT NOT NULL
			)
`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE UNIQUE INDEX ux_tags_name ON tags (name)`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`
			CREATE TABLE books (
				id TEXT PRIMARY KEY,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				book_instance_id TEXT NOT NULL,
				book_lineage TEXT,
				book_lineage_array TEXT,
				title TEXT NOT NULL,
				all_titles TEXT,
				summary TEXT,
				librarian_note TEXT,
				publisher TEXT,
				original_publisher TEXT,
				copyright TEXT,
				license TEXT,
				authors TEXT,
				language_ids TEXT,
				tags TEXT,
				bookshelves TEXT,
				search TEXT NOT NULL DEFAULT '',
				update_source TEXT,
				uploader_id TEXT REFERENCES users (id) NOT NULL,
				in_circulation BOOLEAN,
				draft BOOLEAN,
				rebrand BOOLEAN,
				show TEXT,
				has_bloom_pub BOOLEAN NOT NULL DEFAULT TRUE,
				harvest_state TEXT,
				last_uploaded TIMESTAMPTZ,
				upload_pending_at TIMESTAMPTZ,
				acl TEXT,
				stats_started_count INTEGER,
				stats_finished_count INTEGER,
				stats_shell_downloads INTEGER,
				stats_pdf_downloads INTEGER,
				stats_epub_downloads INTEGER,
				stats_bloompub_downloads INTEGER,
				stats_mean_pages_read REAL,
				stats_mean_minutes_read REAL
			)
`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE INDEX ix_books_book_instance_id ON books (book_instance_id)`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE INDEX ix_books_uploader_id ON books (uploader_id)`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE INDEX ix_books_updated_at ON books (updated_at)`)
		if err != nil {
			return errors.WithStack(err)
		}

		return nil
	}

	down := func(_ context.Context, db *bun.DB) error {
		_, err := db.Exec("DROP TABLE IF EXISTS books")
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec("DROP TABLE IF EXISTS tags")
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec("DROP TABLE IF EXISTS languages")
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec("DROP TABLE IF EXISTS users")
		return errors.WithStack(err)
	}

	Migrations.MustRegister(up, down)
}
