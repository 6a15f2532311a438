package batch

import (
	"bytes"
	"sort"

	"github.com/UnknownOlympus/cartograph/internal/models"
)

// inputColumns is the header row the batch endpoint expects.
var inputColumns = []string{"recId", "street", "city", "state", "postalCode", "country"}

// EncodeAddresses serializes addresses into the delimited table accepted by the batch endpoint.
// Rows are ordered by request ID so the payload is reproducible for a given input.
//
// Field values are written verbatim: a delimiter inside an address component is not escaped
// and shifts the columns of that row.
func EncodeAddresses(addresses map[models.RequestID]models.Address, delim rune) []byte {
	ids := sortedIDs(addresses)

	var buf bytes.Buffer
	writeRow(&buf, delim, inputColumns...)
	for _, id := range ids {
		addr := addresses[id]
		writeRow(&buf, delim, string(id), addr.StreetLine(), addr.City, addr.Region, addr.PostalCode, addr.Country)
	}

	return buf.Bytes()
}

func writeRow(buf *bytes.Buffer, delim rune, fields ...string) {
	for i, field := range fields {
		if i > 0 {
			buf.WriteRune(delim)
		}
		buf.WriteString(field)
	}
	buf.WriteByte('\n')
}

func sortedIDs(addresses map[models.RequestID]models.Address) []models.RequestID {
	ids := make([]models.RequestID, 0, len(addresses))
	for id := range addresses {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	return ids
}
