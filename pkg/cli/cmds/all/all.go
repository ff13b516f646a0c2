// Package all registers every command provider.
package all

import (
	_ "github.com/weighworks/gatescale/pkg/cli/cmds/gate"
	_ "github.com/weighworks/gatescale/pkg/cli/cmds/scale"
)
