package state_test

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"github.com/go-ports/sitebridge/internal/models"
	"github.com/go-ports/sitebridge/internal/state"
)

func openTest(c *qt.C) *state.DB {
	c.Helper()
	db, err := state.Open(filepath.Join(c.TempDir(), "state.db"))
	c.Assert(err, qt.IsNil)
	c.Cleanup(func() { _ = db.Close() })
	return db
}

func TestRunLifecycle_HappyPath(t *testing.T) {
	c := qt.New(t)
	db := openTest(c)

	started := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	id, err := db.CreateRun("https://src", "prod16", "https://tgt", "prod18", false, started)
	c.Assert(err, qt.IsNil)
	c.Assert(id, qt.Not(qt.Equals), "")

	run, err := db.GetRun(id)
	c.Assert(err, qt.IsNil)
	c.Assert(run.SourceURL, qt.Equals, "https://src")
	c.Assert(run.TargetDB, qt.Equals, "prod18")
	c.Assert(run.DryRun, qt.IsFalse)
	c.Assert(run.StartedAt.Equal(started), qt.IsTrue)
	c.Assert(run.Report, qt.Equals, "")

	finished := started.Add(42 * time.Second)
	err = db.FinishRun(id, finished, "Website Migration Report\n")
	c.Assert(err, qt.IsNil)

	run, err = db.GetRun(id)
	c.Assert(err, qt.IsNil)
	c.Assert(run.FinishedAt.Equal(finished), qt.IsTrue)
	c.Assert(run.Report, qt.Equals, "Website Migration Report\n")
}

func TestGetRun_PrefixAndLatest(t *testing.T) {
	c := qt.New(t)
	db := openTest(c)

	t0 := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	first, err := db.CreateRun("https://src", "db", "https://tgt", "db", true, t0)
	c.Assert(err, qt.IsNil)
	second, err := db.CreateRun("https://src", "db", "https://tgt", "db", false, t0.Add(time.Hour))
	c.Assert(err, qt.IsNil)

	c.Run("empty id returns the latest run", func(c *qt.C) {
		run, err := db.GetRun("")
		c.Assert(err, qt.IsNil)
		c.Assert(run.ID, qt.Equals, second)
	})

	c.Run("prefix match", func(c *qt.C) {
		run, err := db.GetRun(state.ShortID(first))
		c.Assert(err, qt.IsNil)
		c.Assert(run.ID, qt.Equals, first)
	})

	c.Run("unknown id", func(c *qt.C) {
		_, err := db.GetRun("deadbeef")
		c.Assert(errors.Is(err, state.ErrRunNotFound), qt.IsTrue)
	})
}

func TestFinishRun_FailurePath(t *testing.T) {
	c := qt.New(t)
	db := openTest(c)

	err := db.FinishRun("no-such-run", time.Now(), "")
	c.Assert(errors.Is(err, state.ErrRunNotFound), qt.IsTrue)
}

func TestListRuns_HappyPath(t *testing.T) {
	c := qt.New(t)
	db := openTest(c)

	t0 := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		_, err := db.CreateRun("https://src", "db", "https://tgt", "db", false, t0.Add(time.Duration(i)*time.Minute))
		c.Assert(err, qt.IsNil)
	}

	runs, err := db.ListRuns(2)
	c.Assert(err, qt.IsNil)
	c.Assert(runs, qt.HasLen, 2)
	// Newest first.
	c.Assert(runs[0].StartedAt.After(runs[1].StartedAt), qt.IsTrue)
}

func TestRecordResults_HappyPath(t *testing.T) {
	c := qt.New(t)
	db := openTest(c)

	id, err := db.CreateRun("https://src", "db", "https://tgt", "db", false, time.Now())
	c.Assert(err, qt.IsNil)

	results := []models.RecordResult{
		{Kind: models.KindWebsites, Name: "Main", Key: "Main", Action: models.ActionCreated},
		{Kind: models.KindPages, Name: "Contact", Key: "/contact", Action: models.ActionSkipped},
		{Kind: models.KindPages, Name: "About", Key: "/about", Action: models.ActionFailed, Err: "boom"},
	}
	for i, r := range results {
		c.Assert(db.AddResult(id, i+1, r), qt.IsNil)
	}

	c.Run("all results in insertion order", func(c *qt.C) {
		got, err := db.ListResults(id, "")
		c.Assert(err, qt.IsNil)
		c.Assert(got, qt.DeepEquals, results)
	})

	c.Run("filtered by action", func(c *qt.C) {
		got, err := db.ListResults(id, models.ActionFailed)
		c.Assert(err, qt.IsNil)
		c.Assert(got, qt.HasLen, 1)
		c.Assert(got[0].Err, qt.Equals, "boom")
	})

	c.Run("per-action counts", func(c *qt.C) {
		counts, err := db.CountResults(id)
		c.Assert(err, qt.IsNil)
		c.Assert(counts, qt.DeepEquals, map[models.Action]int{
			models.ActionCreated: 1,
			models.ActionSkipped: 1,
			models.ActionFailed:  1,
		})
	})
}

func TestMappings_HappyPath(t *testing.T) {
	c := qt.New(t)
	db := openTest(c)

	id, err := db.CreateRun("https://src", "db", "https://tgt", "db", false, time.Now())
	c.Assert(err, qt.IsNil)

	c.Assert(db.AddMapping(id, models.KindMenus, 10, 1001), qt.IsNil)
	c.Assert(db.AddMapping(id, models.KindMenus, 11, 1002), qt.IsNil)
	c.Assert(db.AddMapping(id, models.KindPages, 10, 2001), qt.IsNil)

	menus, err := db.Mappings(id, models.KindMenus)
	c.Assert(err, qt.IsNil)
	c.Assert(menus, qt.DeepEquals, map[int]int{10: 1001, 11: 1002})
}

func TestMeta_HappyPath(t *testing.T) {
	c := qt.New(t)
	db := openTest(c)

	_, ok, err := db.GetMeta("schema_version")
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsFalse)

	c.Assert(db.SetMeta("schema_version", "1"), qt.IsNil)
	c.Assert(db.SetMeta("schema_version", "2"), qt.IsNil)

	val, ok, err := db.GetMeta("schema_version")
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsTrue)
	c.Assert(val, qt.Equals, "2")
}

func TestShortID_HappyPath(t *testing.T) {
	c := qt.New(t)
	c.Assert(state.ShortID("2f9d1c3a-aaaa-bbbb-cccc-000000000000"), qt.Equals, "2f9d1c3a")
	c.Assert(state.ShortID("noprefix"), qt.Equals, "noprefix")
}
