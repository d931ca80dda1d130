package dispatch

import (
	"context"
	"strconv"
	"strings"

	"github.com/go-redlite/redlite/internal/resp"
	"github.com/go-redlite/redlite/internal/session"
	"github.com/go-redlite/redlite/internal/storage"
)

func init() { //nolint:gochecknoinits
	register(cmdSpec{name: "XADD", minArgs: 4, handler: cmdXAdd, queueable: true})
	register(cmdSpec{name: "XLEN", minArgs: 1, handler: cmdXLen, queueable: true})
	register(cmdSpec{name: "XRANGE", minArgs: 3, handler: cmdXRange, queueable: true})
	register(cmdSpec{name: "XREVRANGE", minArgs: 3, handler: cmdXRevRange, queueable: true})
	register(cmdSpec{name: "XREAD", minArgs: 3, handler: cmdXRead})
	register(cmdSpec{name: "XDEL", minArgs: 2, handler: cmdXDel, queueable: true})
	register(cmdSpec{name: "XTRIM", minArgs: 3, handler: cmdXTrim, queueable: true})
	register(cmdSpec{name: "XGROUP", minArgs: 2, handler: cmdXGroup, queueable: true})
	register(cmdSpec{name: "XREADGROUP", minArgs: 6, handler: cmdXReadGroup})
	register(cmdSpec{name: "XACK", minArgs: 3, handler: cmdXAck, queueable: true})
	register(cmdSpec{name: "XPENDING", minArgs: 2, handler: cmdXPending, queueable: true})
	register(cmdSpec{name: "XCLAIM", minArgs: 5, handler: cmdXClaim, queueable: true})
	register(cmdSpec{name: "XINFO", minArgs: 2, handler: cmdXInfo, queueable: true})
}

// parseStreamID parses a stream ID token: "ms-seq", a bare "ms" (seq
// defaults per caller), "-" (minimum), "+" (maximum), or "$" (last-
// generated, resolved by the caller since it needs the store).
func parseStreamID(raw []byte, defaultSeq int64) (storage.StreamID, error) {
	text := s(raw)

	switch text {
	case "-":
		return storage.StreamID{Ms: 0, Seq: 0}, nil
	case "+":
		return storage.StreamID{Ms: 1<<63 - 1, Seq: 1<<63 - 1}, nil
	}

	parts := strings.SplitN(text, "-", 2)

	ms, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return storage.StreamID{}, storage.ErrInvalidData
	}

	seq := defaultSeq

	if len(parts) == 2 {
		seq, err = strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return storage.StreamID{}, storage.ErrInvalidData
		}
	}

	return storage.StreamID{Ms: ms, Seq: seq}, nil
}

func formatStreamID(id storage.StreamID) string {
	return strconv.FormatInt(id.Ms, 10) + "-" + strconv.FormatInt(id.Seq, 10)
}

func streamEntryReply(e storage.StreamEntry) resp.Value {
	fields := make([]resp.Value, 0, len(e.Fields)*2)
	for k, v := range e.Fields {
		fields = append(fields, resp.BulkStr(k), resp.Bulk(v))
	}

	return resp.Array(resp.BulkStr(formatStreamID(e.ID)), resp.Array(fields...))
}

func streamEntriesReply(entries []storage.StreamEntry) resp.Value {
	out := make([]resp.Value, len(entries))
	for i, e := range entries {
		out[i] = streamEntryReply(e)
	}

	return resp.Array(out...)
}

func cmdXAdd(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	i := 1

	nomkstream := false
	if strings.EqualFold(s(args[i]), "NOMKSTREAM") {
		nomkstream = true
		i++
	}

	trimStrategy := ""

	var trimMaxLen int

	var trimMinID storage.StreamID

	if strings.EqualFold(s(args[i]), "MAXLEN") || strings.EqualFold(s(args[i]), "MINID") {
		trimStrategy = strings.ToUpper(s(args[i]))
		i++

		if i < len(args) && (s(args[i]) == "~" || s(args[i]) == "=") {
			i++
		}

		if i >= len(args) {
			return errReply(storage.ErrSyntax)
		}

		switch trimStrategy {
		case "MAXLEN":
			n, err := parseIntArg(args[i])
			if err != nil {
				return errReply(err)
			}

			trimMaxLen = n
		case "MINID":
			id, err := parseStreamID(args[i], 0)
			if err != nil {
				return errReply(err)
			}

			trimMinID = id
		}

		i++
	}

	idToken := s(args[i])
	i++

	fields := args[i:]
	if len(fields)%2 != 0 {
		return arityError("XADD")
	}

	fieldMap := make(map[string][]byte, len(fields)/2)
	for j := 0; j < len(fields); j += 2 {
		fieldMap[s(fields[j])] = fields[j+1]
	}

	var (
		id   storage.StreamID
		auto bool
	)

	if idToken == "*" {
		auto = true
	} else {
		var err error

		id, err = parseStreamID([]byte(idToken), 0)
		if err != nil {
			return errReply(err)
		}
	}

	got, err := d.Store.XAdd(ctx, sess.DB, s(args[0]), id, auto, fieldMap, nomkstream)
	if err != nil {
		return errReply(err)
	}

	if got == (storage.StreamID{}) && nomkstream {
		// XAdd returns the zero ID only via NOMKSTREAM's "missing stream"
		// path (storage never assigns 0-0 to a genuine append).
		exists, existsErr := d.Store.Exists(ctx, sess.DB, s(args[0]))
		if existsErr == nil && !exists {
			return resp.NullBulk()
		}
	}

	switch trimStrategy {
	case "MAXLEN":
		if _, err := d.Store.XTrimMaxLen(ctx, sess.DB, s(args[0]), trimMaxLen); err != nil {
			return errReply(err)
		}
	case "MINID":
		if _, err := d.Store.XTrimMinID(ctx, sess.DB, s(args[0]), trimMinID); err != nil {
			return errReply(err)
		}
	}

	d.Hub.Publish(sess.DB, s(args[0]))

	return resp.BulkStr(formatStreamID(got))
}

func cmdXLen(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	n, err := d.Store.XLen(ctx, sess.DB, s(args[0]))
	if err != nil {
		return errReply(err)
	}

	return resp.Int(int64(n))
}

func cmdXRange(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	return xrange(ctx, d, sess, args, false)
}

func cmdXRevRange(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	return xrange(ctx, d, sess, args, true)
}

func xrange(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte, reverse bool) resp.Value {
	fromArg, toArg := args[1], args[2]
	if reverse {
		fromArg, toArg = args[2], args[1]
	}

	from, err := parseStreamID(fromArg, 0)
	if err != nil {
		return errReply(err)
	}

	to, err := parseStreamID(toArg, 1<<63-1)
	if err != nil {
		return errReply(err)
	}

	count := 0

	if len(args) >= 5 && strings.EqualFold(s(args[3]), "COUNT") {
		count, err = parseIntArg(args[4])
		if err != nil {
			return errReply(err)
		}
	}

	entries, err := d.Store.XRange(ctx, sess.DB, s(args[0]), from, to, count, reverse)
	if err != nil {
		return errReply(err)
	}

	return streamEntriesReply(entries)
}

func cmdXDel(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	ids := make([]storage.StreamID, len(args)-1)

	for i, raw := range args[1:] {
		id, err := parseStreamID(raw, 0)
		if err != nil {
			return errReply(err)
		}

		ids[i] = id
	}

	n, err := d.Store.XDel(ctx, sess.DB, s(args[0]), ids)
	if err != nil {
		return errReply(err)
	}

	return resp.Int(int64(n))
}

func cmdXTrim(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	strategy := strings.ToUpper(s(args[1]))
	i := 2

	if i < len(args) && (s(args[i]) == "~" || s(args[i]) == "=") {
		i++
	}

	if i >= len(args) {
		return errReply(storage.ErrSyntax)
	}

	switch strategy {
	case "MAXLEN":
		maxLen, err := parseIntArg(args[i])
		if err != nil {
			return errReply(err)
		}

		n, err := d.Store.XTrimMaxLen(ctx, sess.DB, s(args[0]), maxLen)
		if err != nil {
			return errReply(err)
		}

		return resp.Int(int64(n))
	case "MINID":
		minID, err := parseStreamID(args[i], 0)
		if err != nil {
			return errReply(err)
		}

		n, err := d.Store.XTrimMinID(ctx, sess.DB, s(args[0]), minID)
		if err != nil {
			return errReply(err)
		}

		return resp.Int(int64(n))
	default:
		return errReply(storage.ErrSyntax)
	}
}

// parseStreamsClause parses the shared "STREAMS key... id..." tail of
// XREAD/XREADGROUP into matched (key, id-token) pairs.
func parseStreamsClause(args [][]byte) ([]string, []string, error) {
	idx := -1

	for i, a := range args {
		if strings.EqualFold(s(a), "STREAMS") {
			idx = i

			break
		}
	}

	if idx == -1 || (len(args)-idx-1)%2 != 0 {
		return nil, nil, storage.ErrSyntax
	}

	rest := args[idx+1:]
	half := len(rest) / 2

	return strs(rest[:half]), strs(rest[half:]), nil
}

func cmdXRead(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	count := 0
	blockMillis := int64(-1)

	i := 0
	for i < len(args) && !strings.EqualFold(s(args[i]), "STREAMS") {
		switch strings.ToUpper(s(args[i])) {
		case "COUNT":
			i++

			var err error

			count, err = parseIntArg(args[i])
			if err != nil {
				return errReply(err)
			}
		case "BLOCK":
			i++

			ms, err := parseInt64Arg(args[i])
			if err != nil {
				return errReply(err)
			}

			blockMillis = ms
		default:
			return errReply(storage.ErrSyntax)
		}

		i++
	}

	keys, idTokens, err := parseStreamsClause(args[i:])
	if err != nil {
		return errReply(err)
	}

	afterIDs := make([]storage.StreamID, len(keys))

	for j, tok := range idTokens {
		if tok == "$" {
			info, ierr := d.Store.XInfoStream(ctx, sess.DB, keys[j])
			if ierr != nil {
				return errReply(ierr)
			}

			afterIDs[j] = info.LastID

			continue
		}

		id, perr := parseStreamID(b(tok), 0)
		if perr != nil {
			return errReply(perr)
		}

		afterIDs[j] = id
	}

	read := func() ([]resp.Value, bool, error) {
		var out []resp.Value

		for j, key := range keys {
			entries, err := d.Store.XRead(ctx, sess.DB, key, afterIDs[j], count)
			if err != nil {
				return nil, false, err
			}

			if len(entries) > 0 {
				out = append(out, resp.Array(resp.BulkStr(key), streamEntriesReply(entries)))
			}
		}

		return out, len(out) > 0, nil
	}

	out, any, err := read()
	if err != nil {
		return errReply(err)
	}

	if any {
		return resp.Array(out...)
	}

	if blockMillis < 0 {
		return resp.NullArray()
	}

	waitCtx := ctx

	var cancel context.CancelFunc

	if blockMillis > 0 {
		waitCtx, cancel = contextWithTimeoutMillis(ctx, blockMillis)
		defer cancel()
	}

	for {
		if d.Hub.WaitAny(waitCtx, sess.DB, keys) == "" {
			return resp.NullArray()
		}

		out, any, err := read()
		if err != nil {
			return errReply(err)
		}

		if any {
			return resp.Array(out...)
		}
	}
}

func cmdXGroup(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	sub := strings.ToUpper(s(args[0]))

	switch sub {
	case "CREATE":
		if len(args) < 4 {
			return arityError("XGROUP")
		}

		useLast := s(args[3]) == "$"

		var id storage.StreamID

		if !useLast {
			parsed, err := parseStreamID(args[3], 0)
			if err != nil {
				return errReply(err)
			}

			id = parsed
		}

		mkstream := len(args) >= 5 && strings.EqualFold(s(args[4]), "MKSTREAM")

		if err := d.Store.XGroupCreate(ctx, sess.DB, s(args[1]), s(args[2]), id, useLast, mkstream); err != nil {
			return errReply(err)
		}

		return resp.OK()
	case "DESTROY":
		ok, err := d.Store.XGroupDestroy(ctx, sess.DB, s(args[1]), s(args[2]))
		if err != nil {
			return errReply(err)
		}

		return resp.Int(boolInt(ok))
	case "SETID":
		useLast := s(args[3]) == "$"

		var id storage.StreamID

		if !useLast {
			parsed, err := parseStreamID(args[3], 0)
			if err != nil {
				return errReply(err)
			}

			id = parsed
		}

		if err := d.Store.XGroupSetID(ctx, sess.DB, s(args[1]), s(args[2]), id, useLast); err != nil {
			return errReply(err)
		}

		return resp.OK()
	case "CREATECONSUMER":
		ok, err := d.Store.XGroupCreateConsumer(ctx, sess.DB, s(args[1]), s(args[2]), s(args[3]))
		if err != nil {
			return errReply(err)
		}

		return resp.Int(boolInt(ok))
	case "DELCONSUMER":
		n, err := d.Store.XGroupDelConsumer(ctx, sess.DB, s(args[1]), s(args[2]), s(args[3]))
		if err != nil {
			return errReply(err)
		}

		return resp.Int(int64(n))
	default:
		return errReply(storage.ErrSyntax)
	}
}

func cmdXReadGroup(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	if !strings.EqualFold(s(args[0]), "GROUP") {
		return errReply(storage.ErrSyntax)
	}

	group := s(args[1])
	consumer := s(args[2])

	count := 0
	noack := false
	blockMillis := int64(-1)

	i := 3
	for i < len(args) && !strings.EqualFold(s(args[i]), "STREAMS") {
		switch strings.ToUpper(s(args[i])) {
		case "COUNT":
			i++

			var err error

			count, err = parseIntArg(args[i])
			if err != nil {
				return errReply(err)
			}
		case "BLOCK":
			i++

			ms, err := parseInt64Arg(args[i])
			if err != nil {
				return errReply(err)
			}

			blockMillis = ms
		case "NOACK":
			noack = true
		default:
			return errReply(storage.ErrSyntax)
		}

		i++
	}

	keys, idTokens, err := parseStreamsClause(args[i:])
	if err != nil {
		return errReply(err)
	}

	read := func() ([]resp.Value, bool, error) {
		var out []resp.Value

		for j, key := range keys {
			if idTokens[j] != ">" {
				continue
			}

			entries, rerr := d.Store.XReadGroup(ctx, sess.DB, key, group, consumer, count, noack)
			if rerr != nil {
				return nil, false, rerr
			}

			if len(entries) > 0 {
				out = append(out, resp.Array(resp.BulkStr(key), streamEntriesReply(entries)))
			}
		}

		return out, len(out) > 0, nil
	}

	out, any, err := read()
	if err != nil {
		return errReply(err)
	}

	if any || blockMillis < 0 {
		if any {
			return resp.Array(out...)
		}

		return resp.NullArray()
	}

	waitCtx := ctx

	var cancel context.CancelFunc

	if blockMillis > 0 {
		waitCtx, cancel = contextWithTimeoutMillis(ctx, blockMillis)
		defer cancel()
	}

	for {
		if d.Hub.WaitAny(waitCtx, sess.DB, keys) == "" {
			return resp.NullArray()
		}

		out, any, err := read()
		if err != nil {
			return errReply(err)
		}

		if any {
			return resp.Array(out...)
		}
	}
}

func cmdXAck(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	ids := make([]storage.StreamID, len(args)-2)

	for i, raw := range args[2:] {
		id, err := parseStreamID(raw, 0)
		if err != nil {
			return errReply(err)
		}

		ids[i] = id
	}

	n, err := d.Store.XAck(ctx, sess.DB, s(args[0]), s(args[1]), ids)
	if err != nil {
		return errReply(err)
	}

	return resp.Int(int64(n))
}

func cmdXPending(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	if len(args) == 2 {
		sum, err := d.Store.XPending(ctx, sess.DB, s(args[0]), s(args[1]))
		if err != nil {
			return errReply(err)
		}

		if sum.Count == 0 {
			return resp.Array(resp.Int(0), resp.NullBulk(), resp.NullBulk(), resp.NullArray())
		}

		consumers := make([]resp.Value, 0, len(sum.Consumers))
		for name, n := range sum.Consumers {
			consumers = append(consumers, resp.Array(resp.BulkStr(name), resp.BulkStr(formatInt(int64(n)))))
		}

		return resp.Array(
			resp.Int(int64(sum.Count)),
			resp.BulkStr(formatStreamID(sum.MinID)),
			resp.BulkStr(formatStreamID(sum.MaxID)),
			resp.Array(consumers...),
		)
	}

	from, err := parseStreamID(args[2], 0)
	if err != nil {
		return errReply(err)
	}

	to, err := parseStreamID(args[3], 1<<63-1)
	if err != nil {
		return errReply(err)
	}

	count, err := parseIntArg(args[4])
	if err != nil {
		return errReply(err)
	}

	consumer := ""
	if len(args) >= 6 {
		consumer = s(args[5])
	}

	entries, err := d.Store.XPendingRange(ctx, sess.DB, s(args[0]), s(args[1]), from, to, count, consumer)
	if err != nil {
		return errReply(err)
	}

	out := make([]resp.Value, len(entries))
	for i, e := range entries {
		out[i] = resp.Array(
			resp.BulkStr(formatStreamID(e.ID)),
			resp.BulkStr(e.Consumer),
			resp.Int(e.IdleMillis),
			resp.Int(int64(e.DeliveryCount)),
		)
	}

	return resp.Array(out...)
}

func cmdXClaim(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	minIdle, err := parseInt64Arg(args[3])
	if err != nil {
		return errReply(err)
	}

	justID := false
	force := false

	idEnd := len(args)

	for i := 4; i < len(args); i++ {
		if strings.EqualFold(s(args[i]), "JUSTID") || strings.EqualFold(s(args[i]), "FORCE") ||
			strings.EqualFold(s(args[i]), "IDLE") || strings.EqualFold(s(args[i]), "TIME") ||
			strings.EqualFold(s(args[i]), "RETRYCOUNT") {
			idEnd = i

			break
		}
	}

	for i := idEnd; i < len(args); i++ {
		switch strings.ToUpper(s(args[i])) {
		case "JUSTID":
			justID = true
		case "FORCE":
			force = true
		case "IDLE", "TIME", "RETRYCOUNT":
			i++
		}
	}

	ids := make([]storage.StreamID, 0, idEnd-4)

	for _, raw := range args[4:idEnd] {
		id, perr := parseStreamID(raw, 0)
		if perr != nil {
			return errReply(perr)
		}

		ids = append(ids, id)
	}

	entries, err := d.Store.XClaim(ctx, sess.DB, s(args[0]), s(args[1]), s(args[2]), minIdle, ids, justID, force)
	if err != nil {
		return errReply(err)
	}

	if justID {
		out := make([]resp.Value, len(entries))
		for i, e := range entries {
			out[i] = resp.BulkStr(formatStreamID(e.ID))
		}

		return resp.Array(out...)
	}

	return streamEntriesReply(entries)
}

func cmdXInfo(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	sub := strings.ToUpper(s(args[0]))

	switch sub {
	case "STREAM":
		info, err := d.Store.XInfoStream(ctx, sess.DB, s(args[1]))
		if err != nil {
			return errReply(err)
		}

		out := []resp.Value{
			resp.BulkStr("length"), resp.Int(int64(info.Length)),
			resp.BulkStr("last-generated-id"), resp.BulkStr(formatStreamID(info.LastID)),
			resp.BulkStr("groups"), resp.Int(int64(info.GroupCount)),
		}

		if info.FirstEntry != nil {
			out = append(out, resp.BulkStr("first-entry"), streamEntryReply(*info.FirstEntry))
		}

		if info.LastEntry != nil {
			out = append(out, resp.BulkStr("last-entry"), streamEntryReply(*info.LastEntry))
		}

		return resp.Array(out...)
	case "GROUPS":
		groups, err := d.Store.XInfoGroups(ctx, sess.DB, s(args[1]))
		if err != nil {
			return errReply(err)
		}

		out := make([]resp.Value, len(groups))
		for i, g := range groups {
			out[i] = resp.Array(
				resp.BulkStr("name"), resp.BulkStr(g.Name),
				resp.BulkStr("last-delivered-id"), resp.BulkStr(formatStreamID(g.LastID)),
			)
		}

		return resp.Array(out...)
	case "CONSUMERS":
		consumers, err := d.Store.XInfoConsumers(ctx, sess.DB, s(args[1]), s(args[2]))
		if err != nil {
			return errReply(err)
		}

		out := make([]resp.Value, len(consumers))
		for i, c := range consumers {
			out[i] = resp.Array(
				resp.BulkStr("name"), resp.BulkStr(c.Name),
				resp.BulkStr("seen-time"), resp.Int(c.SeenAt),
			)
		}

		return resp.Array(out...)
	default:
		return errReply(storage.ErrSyntax)
	}
}
