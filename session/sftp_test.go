package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatIsDir(t *testing.T) {
	assert.True(t, statIsDir(0o040755))
	assert.False(t, statIsDir(0o100644)) // regular file
	assert.False(t, statIsDir(0o120777)) // symlink
}

func TestShellEscape(t *testing.T) {
	assert.Equal(t, `'/srv/app'`, shellEscape("/srv/app"))
	assert.Equal(t, `'it'\''s'`, shellEscape("it's"))
	assert.Equal(t, `''`, shellEscape(""))
}

func TestMin64(t *testing.T) {
	assert.Equal(t, uint64(3), min64(3, 5))
	assert.Equal(t, uint64(3), min64(5, 3))
}
