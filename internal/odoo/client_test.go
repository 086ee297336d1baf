package odoo_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/go-ports/sitebridge/internal/odoo"
	"github.com/go-ports/sitebridge/internal/odoo/odootest"
)

func dialTest(c *qt.C, srv *odootest.Server) *odoo.Client {
	c.Helper()
	client, err := odoo.Dial(context.Background(), odoo.Endpoint{
		URL:      srv.URL(),
		Database: srv.Database,
		Username: srv.Username,
		Password: srv.Password,
	}, odoo.Options{})
	c.Assert(err, qt.IsNil)
	return client
}

func TestDial_HappyPath(t *testing.T) {
	c := qt.New(t)

	srv := odootest.New("production", "admin", "secret")
	defer srv.Close()

	client := dialTest(c, srv)
	c.Assert(client.UID(), qt.Equals, 7)
	c.Assert(client.Database(), qt.Equals, "production")

	c.Run("trailing slash is trimmed from the URL", func(c *qt.C) {
		client, err := odoo.Dial(context.Background(), odoo.Endpoint{
			URL:      srv.URL() + "/",
			Database: srv.Database,
			Username: srv.Username,
			Password: srv.Password,
		}, odoo.Options{})
		c.Assert(err, qt.IsNil)
		c.Assert(client.URL(), qt.Equals, srv.URL())
	})
}

func TestDial_FailurePath(t *testing.T) {
	c := qt.New(t)

	c.Run("bad credentials", func(c *qt.C) {
		srv := odootest.New("production", "admin", "secret")
		defer srv.Close()

		_, err := odoo.Dial(context.Background(), odoo.Endpoint{
			URL:      srv.URL(),
			Database: srv.Database,
			Username: srv.Username,
			Password: "wrong",
		}, odoo.Options{})
		c.Assert(errors.Is(err, odoo.ErrAuthFailed), qt.IsTrue)
	})

	c.Run("non-2xx response surfaces the status", func(c *qt.C) {
		broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "proxy error", http.StatusBadGateway)
		}))
		defer broken.Close()

		_, err := odoo.Dial(context.Background(), odoo.Endpoint{
			URL: broken.URL, Database: "db", Username: "u", Password: "p",
		}, odoo.Options{})
		c.Assert(err, qt.ErrorMatches, `.*HTTP 502.*`)
	})
}

func TestVersion_HappyPath(t *testing.T) {
	c := qt.New(t)

	srv := odootest.New("production", "admin", "secret")
	defer srv.Close()

	client := dialTest(c, srv)
	v, err := client.Version(context.Background())
	c.Assert(err, qt.IsNil)
	c.Assert(v, qt.Equals, "16.0")
}

func TestSearchRead_HappyPath(t *testing.T) {
	c := qt.New(t)

	srv := odootest.New("production", "admin", "secret")
	defer srv.Close()

	srv.Seed("website", odoo.Record{"name": "Main Website", "domain": "example.com"})
	srv.Seed("website", odoo.Record{"name": "Shop"})

	client := dialTest(c, srv)
	ctx := context.Background()

	c.Run("domain filters rows", func(c *qt.C) {
		recs, err := client.SearchRead(ctx, "website",
			[]any{[]any{"name", "=", "Shop"}}, []string{"name", "domain"})
		c.Assert(err, qt.IsNil)
		c.Assert(recs, qt.HasLen, 1)
		c.Assert(recs[0]["name"], qt.Equals, "Shop")
		// Missing fields come back as boolean false, the Odoo way.
		c.Assert(recs[0]["domain"], qt.Equals, false)
	})

	c.Run("nil domain matches everything", func(c *qt.C) {
		recs, err := client.SearchRead(ctx, "website", nil, []string{"name"})
		c.Assert(err, qt.IsNil)
		c.Assert(recs, qt.HasLen, 2)
	})
}

func TestCreateWriteRead_HappyPath(t *testing.T) {
	c := qt.New(t)

	srv := odootest.New("production", "admin", "secret")
	defer srv.Close()

	client := dialTest(c, srv)
	ctx := context.Background()

	id, err := client.Create(ctx, "website.page", map[string]any{
		"name": "Contact", "url": "/contact", "is_published": true,
	})
	c.Assert(err, qt.IsNil)
	c.Assert(id > 0, qt.IsTrue)

	n, err := client.SearchCount(ctx, "website.page", []any{[]any{"url", "=", "/contact"}})
	c.Assert(err, qt.IsNil)
	c.Assert(n, qt.Equals, 1)

	exists, err := client.Exists(ctx, "website.page", []any{[]any{"url", "=", "/about"}})
	c.Assert(err, qt.IsNil)
	c.Assert(exists, qt.IsFalse)

	err = client.Write(ctx, "website.page", []int{id}, map[string]any{"name": "Contact Us"})
	c.Assert(err, qt.IsNil)

	recs, err := client.Read(ctx, "website.page", []int{id}, []string{"name"})
	c.Assert(err, qt.IsNil)
	c.Assert(recs, qt.HasLen, 1)
	c.Assert(recs[0]["name"], qt.Equals, "Contact Us")

	ids, err := client.Search(ctx, "website.page", nil)
	c.Assert(err, qt.IsNil)
	c.Assert(ids, qt.DeepEquals, []int{id})
}

func TestCreate_FailurePath(t *testing.T) {
	c := qt.New(t)

	srv := odootest.New("production", "admin", "secret")
	defer srv.Close()
	srv.FailCreate["website"] = "ValidationError: name is required"

	client := dialTest(c, srv)

	_, err := client.Create(context.Background(), "website", map[string]any{"domain": "x"})
	c.Assert(err, qt.IsNotNil)

	var fault *odoo.Fault
	c.Assert(errors.As(err, &fault), qt.IsTrue)
	c.Assert(fault.String, qt.Equals, "ValidationError: name is required")
}
