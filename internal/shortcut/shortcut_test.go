package shortcut

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestURIEscapesName(t *testing.T) {
	t.Parallel()

	uri, err := URI("Lägg till vara")
	require.NoError(t, err)
	require.Equal(t, "shortcuts://run-shortcut?name=L%C3%A4gg%20till%20vara", uri)

	uri, err = URI("a&b")
	require.NoError(t, err)
	require.Equal(t, "shortcuts://run-shortcut?name=a%26b", uri)

	_, err = URI("  ")
	require.ErrorIs(t, err, ErrNoName)
}

func TestNavigationLauncherQueuesAndDrains(t *testing.T) {
	t.Parallel()

	var n NavigationLauncher
	require.NoError(t, n.Launch(context.Background(), "shortcuts://run-shortcut?name=a"))
	require.NoError(t, n.Launch(context.Background(), "shortcuts://run-shortcut?name=b"))

	require.Equal(t, []string{"shortcuts://run-shortcut?name=a", "shortcuts://run-shortcut?name=b"}, n.Take())
	require.Empty(t, n.Take())
}
