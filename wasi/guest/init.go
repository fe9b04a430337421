//go:build wasip1

// Package guest binds a WASI guest module to its host: HTTP handler
// registration and the SQL proxy transport used by the oracledb client.
package guest

import "github.com/tomyedwab/oracledb/wasi/types"

func Init() {
	InitSQLProxy()

	RegisterHandler("/api/status", func(params types.RequestParams) types.Response {
		return RespondSuccess("ok")
	})
}
