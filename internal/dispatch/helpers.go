package dispatch

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/go-redlite/redlite/internal/resp"
	"github.com/go-redlite/redlite/internal/storage"
)

func nowMillis() int64 { return time.Now().UnixMilli() }

// contextWithTimeoutMillis wraps context.WithTimeout for the blocking
// commands' BLOCK ms / timeout argument.
func contextWithTimeoutMillis(ctx context.Context, ms int64) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, time.Duration(ms)*time.Millisecond)
}

// errReply maps a storage sentinel error (or any other error) to a RESP
// Error reply with the matching wire tag (spec §7).
func errReply(err error) resp.Value {
	switch {
	case errors.Is(err, storage.ErrWrongType):
		return resp.Err(err.Error())
	case errors.Is(err, storage.ErrNoGroup):
		return resp.Err(err.Error())
	case errors.Is(err, storage.ErrBusyGroup):
		return resp.Err(err.Error())
	case errors.Is(err, storage.ErrNotInteger):
		return resp.Err("ERR " + err.Error())
	case errors.Is(err, storage.ErrNotFloat):
		return resp.Err("ERR " + err.Error())
	case errors.Is(err, storage.ErrInvalidExpire):
		return resp.Err("ERR " + err.Error())
	case errors.Is(err, storage.ErrInvalidData):
		return resp.Err("ERR " + err.Error())
	case errors.Is(err, storage.ErrSyntax):
		return resp.Err("ERR " + err.Error())
	case errors.Is(err, storage.ErrOutOfRange):
		return resp.Err("ERR " + err.Error())
	case errors.Is(err, storage.ErrNoSuchKey):
		return resp.Err("ERR " + err.Error())
	default:
		return resp.Err("ERR " + err.Error())
	}
}

func b(s string) []byte { return []byte(s) }

func s(raw []byte) string { return string(raw) }

func strs(args [][]byte) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = string(a)
	}

	return out
}

func bulkArray(values [][]byte) resp.Value {
	out := make([]resp.Value, len(values))
	for i, v := range values {
		out[i] = resp.BulkOrNull(v)
	}

	return resp.Array(out...)
}

func stringArray(values []string) resp.Value {
	out := make([]resp.Value, len(values))
	for i, v := range values {
		out[i] = resp.BulkStr(v)
	}

	return resp.Array(out...)
}

func parseIntArg(raw []byte) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return 0, storage.ErrNotInteger
	}

	return n, nil
}

func parseInt64Arg(raw []byte) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(string(raw)), 10, 64)
	if err != nil {
		return 0, storage.ErrNotInteger
	}

	return n, nil
}

func parseFloatArg(raw []byte) (float64, error) {
	n, err := strconv.ParseFloat(strings.TrimSpace(string(raw)), 64)
	if err != nil {
		return 0, storage.ErrNotFloat
	}

	return n, nil
}

func parseUint(raw string) (uint64, bool) {
	n, err := strconv.ParseUint(raw, 10, 64)

	return n, err == nil
}

func parseInt(raw string) (int64, bool) {
	n, err := strconv.ParseInt(raw, 10, 64)

	return n, err == nil
}

func parseBool(raw string) (bool, bool) {
	switch strings.ToLower(raw) {
	case "1", "true", "yes", "on":
		return true, true
	case "0", "false", "no", "off":
		return false, true
	default:
		return false, false
	}
}

func formatUint(n uint64) string { return strconv.FormatUint(n, 10) }

func formatInt(n int64) string { return strconv.FormatInt(n, 10) }

func formatBool(b bool) string {
	if b {
		return "yes"
	}

	return "no"
}

func formatFloatReply(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// approximateKeySize estimates a key's in-memory footprint for MEMORY
// USAGE (spec §9): a fixed per-key overhead plus a per-type figure. No
// other code consults it; maxmemory is not enforced.
func approximateKeySize(info *storage.KeyInfo) int64 {
	const baseOverhead = 56

	switch info.Type {
	case storage.TypeString:
		return baseOverhead + 32
	case storage.TypeHash, storage.TypeSet, storage.TypeZSet:
		return baseOverhead + 128
	case storage.TypeList:
		return baseOverhead + 96
	case storage.TypeStream:
		return baseOverhead + 256
	default:
		return baseOverhead
	}
}
