package cmd

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func selectionFixture() *manifestState {
	mk := func(name, addr string) hostForm {
		return hostForm{name: name, host: addr, apiTokenEnv: "T", apiSecretEnv: "S"}
	}
	return &manifestState{hosts: []hostForm{
		mk("alpha", "10.0.0.1"),
		mk("bravo", "10.0.0.2"),
		mk("charlie", "10.0.0.3"),
	}}
}

// TestSelectHosts_EmptySelectsAll verifies that an empty request targets the
// whole fleet in manifest order.
func TestSelectHosts_EmptySelectsAll(t *testing.T) {
	hosts, err := selectHosts(selectionFixture(), nil)
	require.NoError(t, err)
	require.Len(t, hosts, 3)
	require.Equal(t, "alpha", hosts[0].name)
	require.Equal(t, "charlie", hosts[2].name)
}

// TestSelectHosts_ManifestOrderAndDedupe verifies that the selection comes
// back in manifest order even when requested backwards, and that repeated
// names select a host only once.
func TestSelectHosts_ManifestOrderAndDedupe(t *testing.T) {
	hosts, err := selectHosts(selectionFixture(), []string{"charlie", "alpha", "charlie", "alpha"})
	require.NoError(t, err)
	require.Len(t, hosts, 2)
	require.Equal(t, "alpha", hosts[0].name)
	require.Equal(t, "charlie", hosts[1].name)
}

// TestSelectHosts_UnknownNamesAbort verifies that any unknown name fails the
// whole selection and every distinct unknown name is reported, sorted.
func TestSelectHosts_UnknownNamesAbort(t *testing.T) {
	_, err := selectHosts(selectionFixture(), []string{"zulu", "alpha", "mike", "zulu"})
	require.Error(t, err)
	require.Equal(t, "unknown host(s): mike, zulu", err.Error())
}
