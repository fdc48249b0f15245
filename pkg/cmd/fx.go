package cmd

import "go.uber.org/fx"

var Module = fx.Module("cli",
	fx.Provide(
		fx.Annotate(branches, fx.ResultTags(`group:"commands"`)),
		fx.Annotate(current, fx.ResultTags(`group:"commands"`)),
		fx.Annotate(diff, fx.ResultTags(`group:"commands"`)),
		fx.Annotate(downgrade, fx.ResultTags(`group:"commands"`)),
		fx.Annotate(heads, fx.ResultTags(`group:"commands"`)),
		fx.Annotate(initCmd, fx.ResultTags(`group:"commands"`)),
		fx.Annotate(logCmd, fx.ResultTags(`group:"commands"`)),
		fx.Annotate(merge, fx.ResultTags(`group:"commands"`)),
		fx.Annotate(revision, fx.ResultTags(`group:"commands"`)),
		fx.Annotate(stamp, fx.ResultTags(`group:"commands"`)),
		fx.Annotate(upgrade, fx.ResultTags(`group:"commands"`)),
	),
	fx.Invoke(Run),
)
