package oracledb

import "context"

type StructType struct{ Name string }

type Client struct{}

type Rows struct{}

type CallResult struct{}

func (c *Client) Query(ctx context.Context, query string, rowType *StructType, args ...any) (*Rows, error) {
	return nil, nil
}

func (c *Client) Call(ctx context.Context, query string, returnType *StructType, args ...any) (*CallResult, error) {
	return nil, nil
}

func (c *Client) Execute(ctx context.Context, query string, args ...any) (any, error) {
	return nil, nil
}
