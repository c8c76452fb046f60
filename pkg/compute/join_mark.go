package compute

import (
	"encoding/binary"
	"strings"

	"github.com/vexecdb/vexec/pkg/chunk"
)

type markGroupCounts struct {
	_countStar uint64
	_count     uint64
}

// CorrelatedMarkInfo tracks, per correlated group, how many build rows
// the group holds and how many of them carry a non null key. The mark
// column needs both to decide between FALSE and NULL when no match is
// found.
type CorrelatedMarkInfo struct {
	_correlatedCols int
	_groups         map[string]*markGroupCounts
}

func NewCorrelatedMarkInfo(correlatedCols int) *CorrelatedMarkInfo {
	return &CorrelatedMarkInfo{
		_correlatedCols: correlatedCols,
		_groups:         make(map[string]*markGroupCounts),
	}
}

// groupKey encodes the leading correlated key columns of one row.
// Fields carry a null flag and a length prefix so varchar payloads
// cannot collide across field boundaries. Slow path, runs once per
// build row and once per probe row.
func (info *CorrelatedMarkInfo) groupKey(keys *chunk.Chunk, row int) string {
	sb := strings.Builder{}
	var lenBuf [4]byte
	for col := 0; col < info._correlatedCols; col++ {
		val := keys.Data[col].GetValue(row)
		if val.IsNull {
			sb.WriteByte(0)
			continue
		}
		sb.WriteByte(1)
		field := val.String()
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(field)))
		sb.Write(lenBuf[:])
		sb.WriteString(field)
	}
	return sb.String()
}

// RecordGroups counts the rows of keys per correlated group. The rows
// with NULL join keys are counted in countStar only.
func (info *CorrelatedMarkInfo) RecordGroups(keys *chunk.Chunk) {
	for row := 0; row < keys.Card(); row++ {
		gkey := info.groupKey(keys, row)
		counts, has := info._groups[gkey]
		if !has {
			counts = &markGroupCounts{}
			info._groups[gkey] = counts
		}
		counts._countStar++
		allValid := true
		for col := info._correlatedCols; col < keys.ColumnCount(); col++ {
			if keys.Data[col].GetValue(row).IsNull {
				allValid = false
				break
			}
		}
		if allValid {
			counts._count++
		}
	}
}

func (info *CorrelatedMarkInfo) Merge(other *CorrelatedMarkInfo) {
	if other == nil {
		return
	}
	for gkey, counts := range other._groups {
		mine, has := info._groups[gkey]
		if !has {
			info._groups[gkey] = counts
			continue
		}
		mine._countStar += counts._countStar
		mine._count += counts._count
	}
}

func (info *CorrelatedMarkInfo) Lookup(keys *chunk.Chunk, row int) (countStar, count uint64) {
	counts, has := info._groups[info.groupKey(keys, row)]
	if !has {
		return 0, 0
	}
	return counts._countStar, counts._count
}
