package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"HotlistTracker/internal/domain"
)

func TestGlobalRank(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 3, GlobalRank(3, 1, 50))
	assert.Equal(t, 53, GlobalRank(3, 2, 50))
	assert.Equal(t, 121, GlobalRank(1, 5, 30))
	assert.Equal(t, 7, GlobalRank(7, 4, 0), "unknown page size keeps rank")
}

func TestNormalizeDoesNotMutateInput(t *testing.T) {
	t.Parallel()

	in := []domain.Candidate{{Title: "a", Rank: 1}, {Title: "b", Rank: 2}}
	out := Normalize(in, Window{Page: 3, PageSize: 10, Accumulated: 20})

	assert.Equal(t, 21, out[0].Rank)
	assert.Equal(t, 22, out[1].Rank)
	assert.Equal(t, 1, in[0].Rank)
}

func TestPolicyShouldStop(t *testing.T) {
	t.Parallel()

	p := Policy{StartPage: 1, PageSize: 20, MaxPages: 3}

	assert.False(t, p.ShouldStop(1, 20))
	assert.True(t, p.ShouldStop(2, 0), "empty page")
	assert.True(t, p.ShouldStop(2, 19), "short page")
	assert.True(t, p.ShouldStop(3, 20), "max pages reached")

	unknown := Policy{MaxPages: 5}
	assert.False(t, unknown.ShouldStop(1, 7), "short page is not a signal without a page size")
}

func TestPolicyAPIPage(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1, Policy{StartPage: 1}.APIPage(1))
	assert.Equal(t, 0, Policy{StartPage: 0}.APIPage(1))
	assert.Equal(t, 2, Policy{StartPage: 0}.APIPage(3))
}
