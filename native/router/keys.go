package router

import "encoding/binary"

var (
	routePlanPrefix     = []byte("router/plan/")
	executionPrefix     = []byte("router/exec/")
	executionSeqKeyName = []byte("router/seq")
)

func appendID(prefix []byte, id uint64) []byte {
	buf := make([]byte, len(prefix)+8)
	copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[len(prefix):], id)
	return buf
}

func routePlanKey(id uint64) []byte {
	return appendID(routePlanPrefix, id)
}

func executionKey(id uint64) []byte {
	return appendID(executionPrefix, id)
}

func executionSeqKey() []byte {
	return executionSeqKeyName
}
