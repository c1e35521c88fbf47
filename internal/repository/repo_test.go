package repository

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"canvas-studio/internal/models"

	"github.com/go-playground/assert/v2"
	"github.com/oklog/ulid/v2"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, "ada", escapeLike("ada"))
	assert.Equal(t, `50\%`, escapeLike("50%"))
	assert.Equal(t, `first\_name`, escapeLike("first_name"))
	assert.Equal(t, `c:\\dir`, escapeLike(`c:\dir`))
}

type capturedQuery struct {
	sql  string
	vars []interface{}
}

// dryRunDB builds SQL for the postgres dialect without a server
func dryRunDB(t *testing.T) (*gorm.DB, *capturedQuery) {
	t.Helper()

	db, err := gorm.Open(postgres.Open("host=localhost user=postgres dbname=canvas_studio sslmode=disable"), &gorm.Config{
		DryRun:               true,
		DisableAutomaticPing: true,
		Logger:               logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	q := &capturedQuery{}
	err = db.Callback().Query().After("gorm:query").Register("test:capture", func(tx *gorm.DB) {
		q.sql = tx.Statement.SQL.String()
		q.vars = append([]interface{}(nil), tx.Statement.Vars...)
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return db, q
}

func TestSearchPrefixEscapesWildcards(t *testing.T) {
	db, q := dryRunDB(t)

	_, err := NewUserRepository(db).SearchPrefix(context.Background(), "Ada_L%", 10)
	assert.Equal(t, nil, err)

	assert.Equal(t, true, strings.Contains(q.sql, "LOWER(username) LIKE $1 OR LOWER(first_name) LIKE $2 OR LOWER(email) LIKE $3"))
	assert.Equal(t, true, strings.Contains(q.sql, "ORDER BY username ASC"))
	assert.Equal(t, `ada\_l\%%`, q.vars[0])
	assert.Equal(t, q.vars[0], q.vars[2])
}

func TestListByUserOmitsElementsNewestFirst(t *testing.T) {
	db, q := dryRunDB(t)

	_, err := NewDesignRepository(db).ListByUser(context.Background(), "u1")
	assert.Equal(t, nil, err)

	assert.Equal(t, false, strings.Contains(q.sql, "canvas_elements"))
	assert.Equal(t, true, strings.Contains(q.sql, `"designs"."deleted_at" IS NULL`))
	assert.Equal(t, true, strings.Contains(q.sql, "ORDER BY updated_at DESC"))
	assert.Equal(t, "u1", q.vars[0])
}

func TestGetByIDsSkipsEmptyQuery(t *testing.T) {
	db, q := dryRunDB(t)

	users, err := NewUserRepository(db).GetByIDs(context.Background(), nil)
	assert.Equal(t, nil, err)
	assert.Equal(t, 0, len(users))
	assert.Equal(t, "", q.sql)
}

// Runs against a real database when TEST_DATABASE_URL is set
func testDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := db.AutoMigrate(&models.Design{}, &models.User{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func TestDesignRepositoryLifecycle(t *testing.T) {
	db := testDB(t)
	repo := NewDesignRepository(db)
	ctx := context.Background()

	user := "test-" + ulid.Make().String()
	t.Cleanup(func() { db.Unscoped().Where("user_id = ?", user).Delete(&models.Design{}) })

	first, err := repo.Create(ctx, &models.DesignCreate{Title: "First", Width: 1080, Height: 1080, UserID: user})
	assert.Equal(t, nil, err)
	assert.Equal(t, 27, len(first.ID))
	assert.Equal(t, 0, len(first.Elements()))

	time.Sleep(10 * time.Millisecond)
	second, err := repo.Create(ctx, &models.DesignCreate{
		Title: "Second", Width: 800, Height: 600, UserID: user,
		CanvasElements: models.Elements{models.NewTextElement("t1", "hello")},
	})
	assert.Equal(t, nil, err)

	list, err := repo.ListByUser(ctx, user)
	assert.Equal(t, nil, err)
	assert.Equal(t, 2, len(list))
	assert.Equal(t, second.ID, list[0].ID)

	// a partial update keeps the other fields and moves the design to the top
	time.Sleep(10 * time.Millisecond)
	title := "First, renamed"
	updated, err := repo.Update(ctx, first.ID, &models.DesignUpdate{Title: &title})
	assert.Equal(t, nil, err)
	assert.Equal(t, title, updated.Title)
	assert.Equal(t, float64(1080), updated.Width)

	list, _ = repo.ListByUser(ctx, user)
	assert.Equal(t, first.ID, list[0].ID)

	got, err := repo.GetByID(ctx, second.ID)
	assert.Equal(t, nil, err)
	assert.Equal(t, "t1", got.Elements()[0].Base().ID)

	// soft delete hides the row, hard delete still finds it
	assert.Equal(t, nil, repo.Delete(ctx, first.ID))
	_, err = repo.GetByID(ctx, first.ID)
	assert.Equal(t, true, errors.Is(err, ErrNotFound))
	assert.Equal(t, true, errors.Is(repo.Delete(ctx, first.ID), ErrNotFound))

	list, _ = repo.ListByUser(ctx, user)
	assert.Equal(t, 1, len(list))

	assert.Equal(t, nil, repo.HardDelete(ctx, first.ID))
	assert.Equal(t, true, errors.Is(repo.HardDelete(ctx, first.ID), ErrNotFound))
}

func TestDesignRepositoryNotFound(t *testing.T) {
	db := testDB(t)
	repo := NewDesignRepository(db)
	ctx := context.Background()

	missing := ulid.Make().String()
	_, err := repo.GetByID(ctx, missing)
	assert.Equal(t, true, errors.Is(err, ErrNotFound))

	title := "x"
	_, err = repo.Update(ctx, missing, &models.DesignUpdate{Title: &title})
	assert.Equal(t, true, errors.Is(err, ErrNotFound))
}

func TestUserRepositoryUpsertAndSearch(t *testing.T) {
	db := testDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	prefix := strings.ToLower(ulid.Make().String())
	underscored := prefix + "_ada"
	plain := prefix + "xada"
	t.Cleanup(func() { db.Where("id IN ?", []string{underscored, plain}).Delete(&models.User{}) })

	for _, name := range []string{underscored, plain} {
		n := name
		_, err := repo.Upsert(ctx, &models.User{ID: n, Email: n + "@example.com", Username: &n})
		assert.Equal(t, nil, err)
	}

	// same id, new email
	_, err := repo.Upsert(ctx, &models.User{ID: plain, Email: "new-" + plain + "@example.com", Username: &plain})
	assert.Equal(t, nil, err)
	u, err := repo.GetByID(ctx, plain)
	assert.Equal(t, nil, err)
	assert.Equal(t, "new-"+plain+"@example.com", u.Email)

	users, err := repo.GetByIDs(ctx, []string{underscored, plain, "missing-" + prefix})
	assert.Equal(t, nil, err)
	assert.Equal(t, 2, len(users))

	// "_" is literal, not a single-character wildcard
	found, err := repo.SearchPrefix(ctx, strings.ToUpper(prefix)+"_", 10)
	assert.Equal(t, nil, err)
	assert.Equal(t, 1, len(found))
	assert.Equal(t, underscored, found[0].ID)

	_, err = repo.GetByID(ctx, "missing-"+prefix)
	assert.Equal(t, true, errors.Is(err, ErrNotFound))
}
