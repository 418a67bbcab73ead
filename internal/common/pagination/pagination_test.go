package pagination_test

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scheduler-webhook/internal/common/errors"
	"scheduler-webhook/internal/common/pagination"
)

func TestParseParams(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		want    pagination.Params
		wantErr bool
	}{
		{"defaults", "", pagination.Params{Page: 1, PerPage: pagination.DefaultPerPage}, false},
		{"explicit", "?page=3&per_page=10", pagination.Params{Page: 3, PerPage: 10}, false},
		{"capped", "?per_page=100000", pagination.Params{Page: 1, PerPage: pagination.MaxPerPage}, false},
		{"zero page", "?page=0", pagination.Params{}, true},
		{"word", "?per_page=many", pagination.Params{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := pagination.ParseParams(httptest.NewRequest("GET", "/api/triggers"+tt.query, nil))
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsType(err, errors.ErrTypeValidation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, p)
		})
	}
}

func TestPaginate(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	page := pagination.Paginate(items, pagination.Params{Page: 2, PerPage: 2})
	assert.Equal(t, []int{3, 4}, page.Results)
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, 5, page.TotalResults)

	last := pagination.Paginate(items, pagination.Params{Page: 3, PerPage: 2})
	assert.Equal(t, []int{5}, last.Results)

	past := pagination.Paginate(items, pagination.Params{Page: 9, PerPage: 2})
	assert.Empty(t, past.Results)
	assert.NotNil(t, past.Results)

	empty := pagination.Paginate([]int{}, pagination.Params{Page: 1, PerPage: 2})
	assert.Equal(t, 1, empty.TotalPages)
}
