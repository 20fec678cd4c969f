package cache

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeySortedAndStable(t *testing.T) {
	t.Parallel()

	a := map[string]string{"q": "golang", "limit": "10", "page": "1"}
	b := map[string]string{"page": "1", "q": "golang", "limit": "10"}

	require.Equal(t, "/search|limit=10|page=1|q=golang", Key("/search", a))
	require.Equal(t, Key("/search", a), Key("/search", b))
	require.Equal(t, Signature("/search", a), Signature("/search", b))
}

func TestKeyIgnoresEmptyValues(t *testing.T) {
	t.Parallel()

	withEmpty := map[string]string{"q": "golang", "region": "", "site": ""}
	without := map[string]string{"q": "golang"}

	require.Equal(t, Signature("/search", without), Signature("/search", withEmpty))
}

func TestKeyDistinguishesRoutesAndValues(t *testing.T) {
	t.Parallel()

	params := map[string]string{"q": "golang"}
	require.NotEqual(t, Signature("/search", params), Signature("/news", params))
	require.NotEqual(t,
		Signature("/search", map[string]string{"q": "golang", "page": "1"}),
		Signature("/search", map[string]string{"q": "golang", "page": "2"}),
	)
}

func TestKeyEscapesSeparators(t *testing.T) {
	t.Parallel()

	joined := map[string]string{"q": "a|b=c"}
	split := map[string]string{"q": "a", "b": "c"}
	require.NotEqual(t, Key("/search", joined), Key("/search", split))
}
