package query_test

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/go-ports/sitebridge/internal/query"
)

func TestExtract_HappyPath(t *testing.T) {
	c := qt.New(t)

	records := []any{
		map[string]any{"name": "Home", "url": "/"},
		map[string]any{"name": "Contact", "url": "/contact"},
	}

	c.Run("empty path returns the data unchanged", func(c *qt.C) {
		got, err := query.Extract(records, "")
		c.Assert(err, qt.IsNil)
		c.Assert(got, qt.DeepEquals, any(records))
	})

	c.Run("index into the record list", func(c *qt.C) {
		got, err := query.Extract(records, "$[1].url")
		c.Assert(err, qt.IsNil)
		c.Assert(got, qt.Equals, any("/contact"))
	})

	c.Run("wildcard over a field", func(c *qt.C) {
		got, err := query.Extract(records, "$[*].name")
		c.Assert(err, qt.IsNil)
		c.Assert(got, qt.DeepEquals, any([]any{"Home", "Contact"}))
	})

	c.Run("nested map", func(c *qt.C) {
		data := map[string]any{"source": map[string]any{"database": "prod16"}}
		got, err := query.Extract(data, "$.source.database")
		c.Assert(err, qt.IsNil)
		c.Assert(got, qt.Equals, any("prod16"))
	})
}

func TestExtract_FailurePath(t *testing.T) {
	c := qt.New(t)

	_, err := query.Extract(map[string]any{}, "not a path")
	c.Assert(err, qt.IsNotNil)
}
