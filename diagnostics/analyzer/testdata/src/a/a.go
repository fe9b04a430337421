package a

import (
	"context"

	"github.com/tomyedwab/oracledb/oracledb"
)

type other struct{}

func (other) Query(ctx context.Context, query string, rowType *oracledb.StructType) {}

func queries(ctx context.Context, c *oracledb.Client, rt *oracledb.StructType) {
	c.Query(ctx, "DELETE FROM shapes", nil) // want `parameter 'rowType' should be explicitly passed when the return data is ignored`
	_, _ = c.Query(ctx, "SELECT * FROM shapes", nil) // want `parameter 'rowType'`
	_, err := c.Query(ctx, "SELECT * FROM shapes", nil, 1) // want `parameter 'rowType'`
	_ = err
	(c.Query(ctx, "SELECT 1 FROM dual", nil)) // want `parameter 'rowType'`

	rows, err := c.Query(ctx, "SELECT * FROM shapes", nil)
	_, _ = rows, err
	c.Query(ctx, "SELECT * FROM shapes", rt)
	c.Execute(ctx, "DELETE FROM shapes", nil)
	other{}.Query(ctx, "SELECT 1", nil)
}

func calls(ctx context.Context, c *oracledb.Client, rt *oracledb.StructType) {
	c.Call(ctx, "BEGIN refresh_shapes(); END;", nil) // want `parameter 'returnType' should be explicitly passed when the return data is ignored`
	defer c.Call(ctx, "BEGIN log_exit(); END;", nil) // want `parameter 'returnType'`
	go c.Call(ctx, "BEGIN warm(); END;", nil)        // want `parameter 'returnType'`

	res, err := c.Call(ctx, "BEGIN count_shapes(?); END;", nil)
	_, _ = res, err
	c.Call(ctx, "BEGIN refresh_shapes(); END;", rt)
}
