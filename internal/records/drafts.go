package records

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pym-escuchas/escuchas/internal/auth"
	"github.com/pym-escuchas/escuchas/internal/listing"
)

const (
	valuePrefix = "v:"
	errorPrefix = "e:"
	revField    = "rev"

	lookupView = "records.lookup"
)

// draftFields are the stored fields; the auditor fields always come from the identity.
var draftFields = []string{
	FieldTelefono, FieldDNIAsesor, FieldAsesor, FieldCampana, FieldSupervisor,
	FieldCoordinador, FieldTipificaBien, FieldClienteDesiste, FieldObservaciones,
}

var advisorFields = []string{FieldAsesor, FieldCampana, FieldSupervisor, FieldCoordinador}

// finishLookup applies a lookup result only while KEYS[2] still holds the lookup's token.
// ARGV: token, ttl ms, number of pairs, pairs..., fields to delete...
var finishLookup = redis.NewScript(`
if redis.call("GET", KEYS[2]) ~= ARGV[1] then
	return 0
end
local n = tonumber(ARGV[3])
local i = 4
for _ = 1, n do
	redis.call("HSET", KEYS[1], ARGV[i], ARGV[i + 1])
	i = i + 2
end
while i <= #ARGV do
	redis.call("HDEL", KEYS[1], ARGV[i])
	i = i + 1
end
local rev = redis.call("HINCRBY", KEYS[1], "rev", 1)
redis.call("PEXPIRE", KEYS[1], ARGV[2])
return rev
`)

// Drafts stores one submission draft per browser session as a Redis hash with one
// entry per field. Writers name the fields they touched, so overlapping live-form
// requests never write back each other's stale copies. Every write bumps the revision.
type Drafts struct {
	client  *redis.Client
	tracker *listing.Tracker
	ttl     time.Duration
}

// NewDrafts constructs Drafts expiring after ttl without writes.
func NewDrafts(client *redis.Client, tracker *listing.Tracker, ttl time.Duration) *Drafts {
	return &Drafts{client: client, tracker: tracker, ttl: ttl}
}

// Load returns the stored draft bound to identity, or a blank one.
func (d *Drafts) Load(ctx context.Context, sessionID string, identity *auth.Identity) (*Form, error) {
	form := NewForm(identity)
	raw, err := d.client.HGetAll(ctx, draftKey(sessionID)).Result()
	if err != nil {
		return form, fmt.Errorf("records: load draft: %w", err)
	}
	for k, v := range raw {
		switch {
		case k == revField:
			form.Rev, _ = strconv.ParseInt(v, 10, 64)
		case strings.HasPrefix(k, valuePrefix):
			form.put(strings.TrimPrefix(k, valuePrefix), v)
		case strings.HasPrefix(k, errorPrefix):
			form.setError(strings.TrimPrefix(k, errorPrefix), v)
		}
	}
	return form, nil
}

// Save writes the values and errors of fields, or of the whole draft when none are named.
func (d *Drafts) Save(ctx context.Context, sessionID string, form *Form, fields ...string) error {
	if len(fields) == 0 {
		fields = draftFields
	}
	key := draftKey(sessionID)
	set, del := entries(form, fields, fields)

	pipe := d.client.TxPipeline()
	pipe.HSet(ctx, key, set)
	if len(del) > 0 {
		pipe.HDel(ctx, key, del...)
	}
	rev := pipe.HIncrBy(ctx, key, revField, 1)
	pipe.PExpire(ctx, key, d.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("records: save draft: %w", err)
	}
	form.Rev = rev.Val()
	return nil
}

// BeginLookup supersedes every pending advisor lookup of the session. Any edit of the
// advisor DNI calls it, so only the lookup of the current DNI can land.
func (d *Drafts) BeginLookup(ctx context.Context, sessionID string) (int64, error) {
	return d.tracker.Issue(ctx, sessionID, lookupView)
}

// FinishLookup stores the advisor fields and the DNI error of form while token is
// still the newest lookup. It reports false for a superseded lookup.
func (d *Drafts) FinishLookup(ctx context.Context, sessionID string, token int64, form *Form) (bool, error) {
	set, del := entries(form, advisorFields, append([]string{FieldDNIAsesor}, advisorFields...))
	args := []any{strconv.FormatInt(token, 10), d.ttl.Milliseconds(), len(set)}
	for _, field := range sortedKeys(set) {
		args = append(args, field, set[field])
	}
	for _, field := range del {
		args = append(args, field)
	}
	rev, err := finishLookup.Run(ctx, d.client, []string{draftKey(sessionID), d.tracker.Key(sessionID, lookupView)}, args...).Int64()
	if err != nil {
		return false, fmt.Errorf("records: finish lookup: %w", err)
	}
	if rev == 0 {
		return false, nil
	}
	form.Rev = rev
	return true, nil
}

// entries maps the values of valueFields and the errors of errorFields to hash writes
// and deletes.
func entries(form *Form, valueFields, errorFields []string) (map[string]any, []string) {
	set := make(map[string]any, len(valueFields)+len(errorFields))
	var del []string
	for _, field := range valueFields {
		set[valuePrefix+field] = form.Get(field)
	}
	for _, field := range errorFields {
		if msg := form.Errors[field]; msg != "" {
			set[errorPrefix+field] = msg
		} else {
			del = append(del, errorPrefix+field)
		}
	}
	return set, del
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func draftKey(sessionID string) string {
	return "escuchas:draft:" + sessionID
}
