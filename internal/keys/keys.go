// Package keys builds the epoch-embedding cache keys used for query results.
package keys

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// QueryKey returns the storage key for one fully-bound query against a table:
//
//	q:<group>:<table>:<epoch>:<16-hex fingerprint>
//
// The epoch is part of the key, so bumping the group's generation retires
// every previously minted key without touching the store.
func QueryKey(group, table string, epoch uint64, sql string, args []any) string {
	return "q:" + group + ":" + table + ":" + strconv.FormatUint(epoch, 10) + ":" + Fingerprint(sql, args)
}

// Fingerprint hashes the canonical request descriptor (statement text plus
// bound values) to a short stable hex string. Identical logical queries must
// hash identically, which holds because the engine always renders the same
// request to the same SQL/args pair.
func Fingerprint(sql string, args []any) string {
	var b strings.Builder
	b.WriteString(sql)
	for _, a := range args {
		b.WriteByte('|')
		fmt.Fprintf(&b, "%v", a)
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:8]) // first 8 bytes = 16 hex chars
}
