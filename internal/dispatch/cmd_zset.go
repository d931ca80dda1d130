package dispatch

import (
	"context"
	"math"
	"strings"

	"github.com/go-redlite/redlite/internal/resp"
	"github.com/go-redlite/redlite/internal/session"
	"github.com/go-redlite/redlite/internal/storage"
)

func init() { //nolint:gochecknoinits
	register(cmdSpec{name: "ZADD", minArgs: 3, handler: cmdZAdd, queueable: true})
	register(cmdSpec{name: "ZREM", minArgs: 2, handler: cmdZRem, queueable: true})
	register(cmdSpec{name: "ZSCORE", minArgs: 2, handler: cmdZScore, queueable: true})
	register(cmdSpec{name: "ZRANK", minArgs: 2, handler: cmdZRank, queueable: true})
	register(cmdSpec{name: "ZREVRANK", minArgs: 2, handler: cmdZRevRank, queueable: true})
	register(cmdSpec{name: "ZCARD", minArgs: 1, handler: cmdZCard, queueable: true})
	register(cmdSpec{name: "ZRANGE", minArgs: 3, handler: cmdZRange, queueable: true})
	register(cmdSpec{name: "ZREVRANGE", minArgs: 3, handler: cmdZRevRange, queueable: true})
	register(cmdSpec{name: "ZRANGEBYSCORE", minArgs: 3, handler: cmdZRangeByScore, queueable: true})
	register(cmdSpec{name: "ZREVRANGEBYSCORE", minArgs: 3, handler: cmdZRevRangeByScore, queueable: true})
	register(cmdSpec{name: "ZCOUNT", minArgs: 3, handler: cmdZCount, queueable: true})
	register(cmdSpec{name: "ZINCRBY", minArgs: 3, handler: cmdZIncrBy, queueable: true})
	register(cmdSpec{name: "ZREMRANGEBYRANK", minArgs: 3, handler: cmdZRemRangeByRank, queueable: true})
	register(cmdSpec{name: "ZREMRANGEBYSCORE", minArgs: 3, handler: cmdZRemRangeByScore, queueable: true})
	register(cmdSpec{name: "ZINTERSTORE", minArgs: 3, handler: cmdZInterStore, queueable: true})
	register(cmdSpec{name: "ZUNIONSTORE", minArgs: 3, handler: cmdZUnionStore, queueable: true})
	register(cmdSpec{name: "ZSCAN", minArgs: 2, handler: cmdZScan, queueable: true})
}

func parseScore(raw []byte) (float64, error) {
	switch strings.ToLower(s(raw)) {
	case "-inf":
		return math.Inf(-1), nil
	case "+inf", "inf":
		return math.Inf(1), nil
	default:
		return parseFloatArg(raw)
	}
}

func cmdZAdd(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	rest := args[1:]
	if len(rest)%2 != 0 {
		return arityError("ZADD")
	}

	pairs := make(map[string]float64, len(rest)/2)

	for i := 0; i < len(rest); i += 2 {
		score, err := parseScore(rest[i])
		if err != nil {
			return errReply(err)
		}

		pairs[s(rest[i+1])] = score
	}

	n, err := d.Store.ZAdd(ctx, sess.DB, s(args[0]), pairs)
	if err != nil {
		return errReply(err)
	}

	return resp.Int(int64(n))
}

func cmdZRem(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	n, err := d.Store.ZRem(ctx, sess.DB, s(args[0]), strs(args[1:]))
	if err != nil {
		return errReply(err)
	}

	return resp.Int(int64(n))
}

func cmdZScore(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	score, ok, err := d.Store.ZScore(ctx, sess.DB, s(args[0]), s(args[1]))
	if err != nil {
		return errReply(err)
	}

	if !ok {
		return resp.NullBulk()
	}

	return resp.BulkStr(formatFloatReply(score))
}

func cmdZRank(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	return zrank(ctx, d, sess, args, false)
}

func cmdZRevRank(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	return zrank(ctx, d, sess, args, true)
}

func zrank(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte, reverse bool) resp.Value {
	rank, ok, err := d.Store.ZRank(ctx, sess.DB, s(args[0]), s(args[1]), reverse)
	if err != nil {
		return errReply(err)
	}

	if !ok {
		return resp.NullBulk()
	}

	return resp.Int(int64(rank))
}

func cmdZCard(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	n, err := d.Store.ZCard(ctx, sess.DB, s(args[0]))
	if err != nil {
		return errReply(err)
	}

	return resp.Int(int64(n))
}

func membersReply(members []storage.ZMember, withScores bool) resp.Value {
	out := make([]resp.Value, 0, len(members)*2)

	for _, m := range members {
		out = append(out, resp.BulkStr(m.Member))

		if withScores {
			out = append(out, resp.BulkStr(formatFloatReply(m.Score)))
		}
	}

	return resp.Array(out...)
}

func hasWithScores(args [][]byte) bool {
	for _, a := range args {
		if strings.EqualFold(s(a), "WITHSCORES") {
			return true
		}
	}

	return false
}

func cmdZRange(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	return zrange(ctx, d, sess, args, false)
}

func cmdZRevRange(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	return zrange(ctx, d, sess, args, true)
}

func zrange(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte, reverse bool) resp.Value {
	start, err := parseIntArg(args[1])
	if err != nil {
		return errReply(err)
	}

	end, err := parseIntArg(args[2])
	if err != nil {
		return errReply(err)
	}

	members, err := d.Store.ZRange(ctx, sess.DB, s(args[0]), start, end, reverse)
	if err != nil {
		return errReply(err)
	}

	return membersReply(members, hasWithScores(args[3:]))
}

// parseRangeByScoreOpts scans the trailing [LIMIT offset count] modifier
// shared by ZRANGEBYSCORE/ZREVRANGEBYSCORE.
func parseRangeByScoreOpts(args [][]byte) (offset, count int, err error) {
	count = -1

	for i := 0; i < len(args); i++ {
		if strings.EqualFold(s(args[i]), "LIMIT") {
			if i+2 >= len(args) {
				return 0, 0, storage.ErrSyntax
			}

			offset, err = parseIntArg(args[i+1])
			if err != nil {
				return 0, 0, err
			}

			count, err = parseIntArg(args[i+2])
			if err != nil {
				return 0, 0, err
			}

			i += 2
		}
	}

	return offset, count, nil
}

func cmdZRangeByScore(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	minScore, err := parseScore(args[1])
	if err != nil {
		return errReply(err)
	}

	maxScore, err := parseScore(args[2])
	if err != nil {
		return errReply(err)
	}

	offset, count, err := parseRangeByScoreOpts(args[3:])
	if err != nil {
		return errReply(err)
	}

	members, err := d.Store.ZRangeByScore(ctx, sess.DB, s(args[0]), minScore, maxScore, offset, count)
	if err != nil {
		return errReply(err)
	}

	return membersReply(members, hasWithScores(args[3:]))
}

func cmdZRevRangeByScore(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	maxScore, err := parseScore(args[1])
	if err != nil {
		return errReply(err)
	}

	minScore, err := parseScore(args[2])
	if err != nil {
		return errReply(err)
	}

	offset, count, err := parseRangeByScoreOpts(args[3:])
	if err != nil {
		return errReply(err)
	}

	members, err := d.Store.ZRevRangeByScore(ctx, sess.DB, s(args[0]), minScore, maxScore, offset, count)
	if err != nil {
		return errReply(err)
	}

	return membersReply(members, hasWithScores(args[3:]))
}

func cmdZCount(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	minScore, err := parseScore(args[1])
	if err != nil {
		return errReply(err)
	}

	maxScore, err := parseScore(args[2])
	if err != nil {
		return errReply(err)
	}

	n, err := d.Store.ZCount(ctx, sess.DB, s(args[0]), minScore, maxScore)
	if err != nil {
		return errReply(err)
	}

	return resp.Int(int64(n))
}

func cmdZIncrBy(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	delta, err := parseScore(args[1])
	if err != nil {
		return errReply(err)
	}

	n, err := d.Store.ZIncrBy(ctx, sess.DB, s(args[0]), s(args[2]), delta)
	if err != nil {
		return errReply(err)
	}

	return resp.BulkStr(formatFloatReply(n))
}

func cmdZRemRangeByRank(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	start, err := parseIntArg(args[1])
	if err != nil {
		return errReply(err)
	}

	end, err := parseIntArg(args[2])
	if err != nil {
		return errReply(err)
	}

	n, err := d.Store.ZRemRangeByRank(ctx, sess.DB, s(args[0]), start, end)
	if err != nil {
		return errReply(err)
	}

	return resp.Int(int64(n))
}

func cmdZRemRangeByScore(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	minScore, err := parseScore(args[1])
	if err != nil {
		return errReply(err)
	}

	maxScore, err := parseScore(args[2])
	if err != nil {
		return errReply(err)
	}

	n, err := d.Store.ZRemRangeByScore(ctx, sess.DB, s(args[0]), minScore, maxScore)
	if err != nil {
		return errReply(err)
	}

	return resp.Int(int64(n))
}

// parseZStoreArgs parses the shared ZINTERSTORE/ZUNIONSTORE argument form:
// dst numkeys key... [WEIGHTS w...] [AGGREGATE SUM|MIN|MAX].
func parseZStoreArgs(args [][]byte) (dst string, keys []string, weights []float64, agg storage.ZAggregate, err error) {
	dst = s(args[0])

	numKeys, err := parseIntArg(args[1])
	if err != nil {
		return "", nil, nil, 0, err
	}

	if numKeys <= 0 || 2+numKeys > len(args) {
		return "", nil, nil, 0, storage.ErrSyntax
	}

	keys = strs(args[2 : 2+numKeys])
	agg = storage.AggSum

	for i := 2 + numKeys; i < len(args); i++ {
		word := strings.ToUpper(s(args[i]))

		switch word {
		case "WEIGHTS":
			weights = make([]float64, numKeys)

			for j := 0; j < numKeys; j++ {
				i++
				if i >= len(args) {
					return "", nil, nil, 0, storage.ErrSyntax
				}

				w, werr := parseFloatArg(args[i])
				if werr != nil {
					return "", nil, nil, 0, werr
				}

				weights[j] = w
			}
		case "AGGREGATE":
			i++
			if i >= len(args) {
				return "", nil, nil, 0, storage.ErrSyntax
			}

			switch strings.ToUpper(s(args[i])) {
			case "SUM":
				agg = storage.AggSum
			case "MIN":
				agg = storage.AggMin
			case "MAX":
				agg = storage.AggMax
			default:
				return "", nil, nil, 0, storage.ErrSyntax
			}
		default:
			return "", nil, nil, 0, storage.ErrSyntax
		}
	}

	return dst, keys, weights, agg, nil
}

func cmdZInterStore(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	return zstore(ctx, d, sess, storage.OpInter, args)
}

func cmdZUnionStore(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	return zstore(ctx, d, sess, storage.OpUnion, args)
}

func zstore(ctx context.Context, d *Dispatcher, sess *session.Session, op storage.SetOp, args [][]byte) resp.Value {
	dst, keys, weights, agg, err := parseZStoreArgs(args)
	if err != nil {
		return errReply(err)
	}

	n, err := d.Store.ZStore(ctx, sess.DB, op, agg, dst, keys, weights)
	if err != nil {
		return errReply(err)
	}

	return resp.Int(int64(n))
}

func cmdZScan(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	cursor, match, count, err := parseScanOpts(args[1:])
	if err != nil {
		return errReply(err)
	}

	members, next, err := d.Store.ZScan(ctx, sess.DB, s(args[0]), cursor, match, count)
	if err != nil {
		return errReply(err)
	}

	return resp.Array(resp.BulkStr(formatInt(next)), membersReply(members, true))
}
