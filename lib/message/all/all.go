// Package all is a meta-package that imports all message backends.
package all

import (
	_ "github.com/TecharoHQ/wall/lib/message/bbolt"
	_ "github.com/TecharoHQ/wall/lib/message/memory"
	_ "github.com/TecharoHQ/wall/lib/message/postgres"
)
