//go:build wasip1

// Command drawings is an example guest module. It serves drawings stored in
// an Oracle table whose SHAPE column has the object type
//
//	CREATE TYPE shape_t AS OBJECT (width NUMBER, height NUMBER);
//	CREATE TABLE drawings (id NUMBER PRIMARY KEY, shape shape_t);
//
// Build it as a WASI reactor and run it under orahost:
//
//	GOOS=wasip1 GOARCH=wasm go build -buildmode=c-shared -o drawings.wasm ./example/drawings
//	orahost -wasm drawings.wasm -driver godror -dsn 'scott/tiger@localhost:1521/ORCLPDB1'
package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/tomyedwab/oracledb/oracledb"
	"github.com/tomyedwab/oracledb/udt"
	"github.com/tomyedwab/oracledb/wasi/guest"
	"github.com/tomyedwab/oracledb/wasi/types"
)

var drawingType = &udt.StructType{
	Name: "Drawing",
	Fields: []udt.Field{
		{Name: "ID", Tag: udt.TagInt},
		{Name: "SHAPE", Tag: udt.TagObject, Type: udt.Generic("dims", udt.TagDecimal)},
	},
}

type drawing struct {
	ID    int64    `json:"id"`
	Shape []string `json:"shape"`
}

func listDrawings(client *oracledb.Client) ([]drawing, error) {
	rows, err := client.Query(context.Background(), "SELECT id, shape FROM drawings ORDER BY id", drawingType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	drawings := []drawing{}
	for rows.Next() {
		row, err := rows.Record()
		if err != nil {
			return nil, err
		}
		d := drawing{}
		if id, ok := row["ID"].(int64); ok {
			d.ID = id
		}
		if rec, ok := row["SHAPE"].(udt.Record); ok {
			for _, v := range rec.Values() {
				d.Shape = append(d.Shape, fmt.Sprint(v))
			}
		}
		drawings = append(drawings, d)
	}
	return drawings, rows.Err()
}

func init() {
	guest.Init()

	client, err := guest.OpenClient()
	if err != nil {
		panic(err)
	}

	guest.RegisterHandler("/api/drawings", func(params types.RequestParams) types.Response {
		drawings, err := listDrawings(client)
		return guest.CreateResponse(drawings, err, "failed to list drawings")
	})

	guest.RegisterHandler("/api/drawings/refresh", func(params types.RequestParams) types.Response {
		if params.Profile == "" {
			return guest.RespondError(http.StatusForbidden, fmt.Errorf("no profile"))
		}
		res, err := client.Call(context.Background(), "BEGIN refresh_drawings(:1); END;", nil, params.Profile)
		if err != nil {
			return guest.RespondError(http.StatusInternalServerError, err)
		}
		n, _ := res.Result.RowsAffected()
		return guest.CreateResponse(map[string]int64{"rows": n}, nil, "")
	})
}

func main() {}
