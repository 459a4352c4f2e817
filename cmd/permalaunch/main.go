package main

import (
	"go.permalaunch.dev/core/cmd/permalaunch/plcmd"
	mbp "go.permalaunch.dev/core/mainboilerplate"
	"go.permalaunch.dev/core/stores"
	"go.permalaunch.dev/core/stores/azure"
	fsstore "go.permalaunch.dev/core/stores/fs"
	"go.permalaunch.dev/core/stores/gcs"
	"go.permalaunch.dev/core/stores/s3"
	"go.permalaunch.dev/core/stores/turbo"
)

func main() {
	defer mbp.ExitOnPanic()

	stores.RegisterProviders(map[string]stores.Constructor{
		"turbo":    turbo.New,
		"file":     fsstore.New,
		"s3":       s3.New,
		"gs":       gcs.New,
		"azure":    azure.NewAccount,
		"azure-ad": azure.NewAD,
	})
	plcmd.Execute()
}
