package gen

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
)

var Module = fx.Module("snowflake",
	fx.Provide(NewNode),
)

// NewNode builds the process-wide snowflake node used for document ids.
func NewNode() (*snowflake.Node, error) {
	// TODO: take node id from config once multiple API replicas are deployed.
	return snowflake.NewNode(1)
}
