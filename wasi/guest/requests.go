//go:build wasip1

package guest

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/tomyedwab/oracledb/wasi/types"
)

func RespondSuccess(body string) types.Response {
	return types.Response{
		Body:    body,
		Status:  http.StatusOK,
		Headers: make(map[string]string),
	}
}

func RespondError(status int, err error) types.Response {
	return types.Response{
		Body:    err.Error(),
		Status:  status,
		Headers: make(map[string]string),
	}
}

// CreateResponse encodes ret as a JSON response, or reports err prefixed
// with message.
func CreateResponse(ret any, err error, message string) types.Response {
	if err != nil {
		return RespondError(http.StatusInternalServerError, fmt.Errorf("%s: %v", message, err))
	}
	responseJson, err := json.Marshal(ret)
	if err != nil {
		return RespondError(http.StatusInternalServerError, fmt.Errorf("error marshaling JSON: %v", err))
	}
	return RespondSuccess(string(responseJson))
}

type RequestHandler func(params types.RequestParams) types.Response

var (
	requestHandlers = map[uint32]RequestHandler{}
	nextHandlerID   uint32 = 1
)

//go:wasmimport env register_handler
func register_handler(uri string, handlerId uint32)

//go:wasmimport env write_response
func write_response(message string)

//go:wasmexport handle_request
func handle_request(paramsHandle, handlerId uint32) int32 {
	handler := requestHandlers[handlerId]
	if handler == nil {
		write_response("Internal error: missing handler")
		return -1
	}

	var params types.RequestParams
	if err := json.Unmarshal(TakeBytes(paramsHandle), &params); err != nil {
		respJson, _ := json.Marshal(RespondError(http.StatusBadRequest, err))
		write_response(string(respJson))
		return 0
	}

	respJson, _ := json.Marshal(handler(params))
	write_response(string(respJson))
	return 0
}

// RegisterHandler asks the host to route requests for uri to handler.
func RegisterHandler(uri string, handler RequestHandler) {
	register_handler(uri, nextHandlerID)
	requestHandlers[nextHandlerID] = handler
	nextHandlerID++
}
