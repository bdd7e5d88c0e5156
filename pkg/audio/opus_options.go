package audio

import (
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/saker-ai/orion-client/pkg/audio/opusx"
)

// EncoderOptions tunes the opus encoder. Zero values keep the library defaults.
type EncoderOptions struct {
	Bitrate        int    `mapstructure:"bitrate"`
	Complexity     int    `mapstructure:"complexity"`
	VBR            *bool  `mapstructure:"vbr"`
	VBRConstraint  *bool  `mapstructure:"vbr_constraint"`
	FEC            *bool  `mapstructure:"fec"`
	DTX            *bool  `mapstructure:"dtx"`
	PacketLossPerc int    `mapstructure:"packet_loss_perc"`
	MaxBandwidth   string `mapstructure:"max_bandwidth"`
}

var opusLogOnce sync.Once

func (opts EncoderOptions) apply(enc *opusx.Encoder, logger *zap.Logger) {
	if enc == nil {
		return
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if opts.Bitrate > 0 {
		_ = enc.SetBitrate(opts.Bitrate)
	}
	if opts.Complexity > 0 {
		_ = enc.SetComplexity(opts.Complexity)
	}
	if opts.VBR != nil {
		_ = enc.SetVBR(*opts.VBR)
	}
	if opts.VBRConstraint != nil {
		_ = enc.SetVBRConstraint(*opts.VBRConstraint)
	}
	if opts.FEC != nil {
		_ = enc.SetInBandFEC(*opts.FEC)
	}
	if opts.DTX != nil {
		_ = enc.SetDTX(*opts.DTX)
	}
	if opts.PacketLossPerc > 0 {
		_ = enc.SetPacketLossPerc(opts.PacketLossPerc)
	}
	if bw, ok := ParseBandwidth(opts.MaxBandwidth); ok {
		_ = enc.SetMaxBandwidth(bw)
	}

	opusLogOnce.Do(func() {
		logger.Info("opus encoder options",
			zap.String("backend", opusx.Backend()),
			zap.Int("bitrate", opts.Bitrate),
			zap.Int("complexity", opts.Complexity),
			zap.String("vbr", boolPtrString(opts.VBR)),
			zap.String("vbr_constraint", boolPtrString(opts.VBRConstraint)),
			zap.String("fec", boolPtrString(opts.FEC)),
			zap.String("dtx", boolPtrString(opts.DTX)),
			zap.Int("packet_loss", opts.PacketLossPerc),
			zap.String("max_bw", opts.MaxBandwidth),
		)
	})
}

// ParseBandwidth maps a bandwidth name to the opus constant. "auto" and "" report false.
func ParseBandwidth(v string) (opusx.Bandwidth, bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "narrowband", "nb":
		return opusx.Narrowband, true
	case "mediumband", "mb":
		return opusx.Mediumband, true
	case "wideband", "wb":
		return opusx.Wideband, true
	case "superwideband", "swb":
		return opusx.SuperWideband, true
	case "fullband", "fb":
		return opusx.Fullband, true
	default:
		var zero opusx.Bandwidth
		return zero, false
	}
}

func boolPtrString(v *bool) string {
	if v == nil {
		return "unset"
	}
	if *v {
		return "true"
	}
	return "false"
}
