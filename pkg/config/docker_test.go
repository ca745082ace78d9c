package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveHostForDocker_RemoteHostsUnchanged(t *testing.T) {
	for _, host := range []string{"mydb.example.com", "192.168.1.100", "host.docker.internal"} {
		assert.Equal(t, host, ResolveHostForDocker(host))
	}
}

func TestResolveHostForDocker_Localhost(t *testing.T) {
	want := "localhost"
	if IsRunningInDocker() {
		want = "host.docker.internal"
	}
	assert.Equal(t, want, ResolveHostForDocker("localhost"))
}
