package repository

import (
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubRow feeds one row's worth of values into a scan function.
type stubRow struct {
	vals []interface{}
}

func (r stubRow) Scan(dests ...interface{}) error {
	if len(dests) != len(r.vals) {
		return fmt.Errorf("scan expects %d destinations, row has %d values", len(dests), len(r.vals))
	}
	for i, d := range dests {
		dv := reflect.ValueOf(d).Elem()
		if r.vals[i] == nil {
			dv.Set(reflect.Zero(dv.Type()))
			continue
		}
		dv.Set(reflect.ValueOf(r.vals[i]))
	}
	return nil
}

func strPtr(s string) *string { return &s }

func TestScanUserCarriesInstitutionName(t *testing.T) {
	now := time.Now()

	user, err := scanUser(stubRow{vals: []interface{}{
		"user-1", "Lisa Simpson", nil, "lisa@student.springfield.edu", "hash", "student",
		nil, true, strPtr("inst-1"), strPtr("Springfield High"),
		120, 3, nil, now, now,
	}})
	require.NoError(t, err)

	assert.Equal(t, "user-1", user.ID)
	assert.Equal(t, "lisa@student.springfield.edu", user.Email)
	require.NotNil(t, user.InstitutionName)
	assert.Equal(t, "Springfield High", *user.InstitutionName)

	// A user without an institution scans a NULL joined name.
	orphan, err := scanUser(stubRow{vals: []interface{}{
		"user-2", "Admin", nil, "admin@queryquest.dev", "hash", "admin",
		nil, true, nil, nil,
		0, 0, nil, now, now,
	}})
	require.NoError(t, err)
	assert.Nil(t, orphan.InstitutionName)
}

func TestScanChallengeCarriesCreatorName(t *testing.T) {
	now := time.Now()

	c, err := scanChallenge(stubRow{vals: []interface{}{
		"ch-1", "Joins", "joins", "x", nil, "select 1", 3,
		96, 100, 50, 2, strPtr("inst-1"), strPtr("user-1"), strPtr("Edna Krabappel"),
		now, now,
	}})
	require.NoError(t, err)
	require.NotNil(t, c.CreatedByName)
	assert.Equal(t, "Edna Krabappel", *c.CreatedByName)
}

func TestScanLessonCarriesCreatorName(t *testing.T) {
	now := time.Now()

	l, err := scanLesson(stubRow{vals: []interface{}{
		"les-1", "Aggregates", "desc", "# GROUP BY", 1, true,
		"inst-1", strPtr("user-1"), strPtr("Edna Krabappel"), now, now,
	}})
	require.NoError(t, err)
	require.NotNil(t, l.CreatedByName)
	assert.Equal(t, "Edna Krabappel", *l.CreatedByName)
}

// The column lists must stay in step with the scan destinations.
func TestColumnCountsMatchScanDestinations(t *testing.T) {
	count := func(columns string) int { return len(strings.Split(columns, ",")) }

	_, err := scanUser(stubRow{vals: make([]interface{}, count(userColumns))})
	assert.NoError(t, err)

	_, err = scanChallenge(stubRow{vals: make([]interface{}, count(challengeColumns))})
	assert.NoError(t, err)

	_, err = scanLesson(stubRow{vals: make([]interface{}, count(lessonColumns))})
	assert.NoError(t, err)
}
