// Package mcpio frames JSON-RPC 2.0 messages with Content-Length headers
// for the stdio MCP transport.
package mcpio

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const maxMessageSize = 10 * 1024 * 1024 // 10MB

// JSON-RPC error codes.
const (
	CodeParseError     = -32700
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

var ErrMissingLength = errors.New("missing Content-Length header")

type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsNotification reports whether the request expects no response.
func (r *Request) IsNotification() bool { return r.ID == nil }

type Response struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id,omitempty"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// ReadMessage reads a Content-Length framed message from r.
func ReadMessage(r *bufio.Reader) ([]byte, error) {
	contentLength := -1

	for {
		line, err := r.ReadString('\n')
		if err != nil {
			if err == io.EOF && line == "" {
				return nil, io.EOF
			}
			return nil, err
		}

		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			if contentLength < 0 {
				return nil, ErrMissingLength
			}
			break
		}

		name, val, ok := strings.Cut(line, ":")
		if !ok || !strings.EqualFold(strings.TrimSpace(name), "content-length") {
			continue
		}
		val = strings.TrimSpace(val)
		n, err := strconv.Atoi(val)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid Content-Length: %q", val)
		}
		if n > maxMessageSize {
			return nil, fmt.Errorf("content length %d exceeds limit %d", n, maxMessageSize)
		}
		contentLength = n
	}

	body := make([]byte, contentLength)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	return body, nil
}

// WriteMessage writes a Content-Length framed message to w.
func WriteMessage(w io.Writer, payload []byte) error {
	header := fmt.Sprintf("Content-Length: %d\r\n\r\n", len(payload))
	if _, err := io.WriteString(w, header); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// ReadRequest reads and decodes one request. A body that is not valid JSON
// is returned as an RPCError with CodeParseError.
func ReadRequest(r *bufio.Reader) (*Request, error) {
	msg, err := ReadMessage(r)
	if err != nil {
		return nil, err
	}
	var req Request
	if err := json.Unmarshal(msg, &req); err != nil {
		return nil, &RPCError{Code: CodeParseError, Message: "Parse error", Data: err.Error()}
	}
	return &req, nil
}

// WriteResult sends a success response.
func WriteResult(w io.Writer, id, result interface{}) error {
	return writeResponse(w, Response{JSONRPC: "2.0", ID: id, Result: result})
}

// WriteError sends an error response.
func WriteError(w io.Writer, id interface{}, rpcErr *RPCError) error {
	return writeResponse(w, Response{JSONRPC: "2.0", ID: id, Error: rpcErr})
}

func writeResponse(w io.Writer, resp Response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return WriteMessage(w, data)
}
