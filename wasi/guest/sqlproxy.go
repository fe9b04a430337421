//go:build wasip1

package guest

import (
	"fmt"

	"github.com/tomyedwab/oracledb/oracledb"
	sqlproxy "github.com/tomyedwab/oracledb/sqlproxy/driver"
)

// sql_host_handler returns the handle of the response buffer in the low 32
// bits. Bit 32 is set when the buffer holds an error message.
//
//go:wasmimport env sql_host_handler
func sql_host_handler(requestPayload string) uint64

const hostErrorFlag = 1 << 32

func InitSQLProxy() {
	sqlproxy.SetHostHandler(func(payload []byte) ([]byte, error) {
		result := sql_host_handler(string(payload))
		body := TakeBytes(uint32(result))
		if result&hostErrorFlag != 0 {
			return nil, fmt.Errorf("sql_host_handler returned error: %s", body)
		}
		return body, nil
	})
}

// OpenClient returns a client whose statements run on the host database.
func OpenClient() (*oracledb.Client, error) {
	return oracledb.Open()
}
