package consumer

import (
	"go.uber.org/zap"

	"github.com/sdcgo/sdc-core/internal/model"
	"github.com/sdcgo/sdc-core/internal/soap"
	"github.com/sdcgo/sdc-core/internal/xmlcodec"
)

func mdibDecodeReport(raw []byte) (uint64, string, []model.Entity, error) {
	env, err := soap.Decode(raw)
	if err != nil {
		return 0, "", nil, err
	}
	return xmlcodec.DecodeDocument(env.Body)
}

func zapUint64(key string, v uint64) zap.Field { return zap.Uint64(key, v) }
