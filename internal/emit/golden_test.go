package emit

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/tz301/kaldi-onnx-tf/internal/ir"
)

const spliceText = "input-node name=input dim=2\n" +
	"output-node name=output input=Append(Offset(input, -1), input)\n"

func TestDumpGoldenONNX(t *testing.T) {
	tg := lower(t, spliceText, ir.Context{Left: 1, Right: 0}, Options{
		Target:      TargetONNX,
		Length:      5,
		ModelDigest: "sha256:golden",
	})

	g := goldie.New(t, goldie.WithFixtureDir("testdata/golden"))
	g.Assert(t, "onnx_splice", []byte(Dump(tg)))
}

func TestDumpGoldenTF(t *testing.T) {
	tg := lower(t, spliceText, ir.Context{Left: 1, Right: 0}, Options{
		Target:      TargetTF,
		Length:      5,
		ModelDigest: "sha256:golden",
	})

	g := goldie.New(t, goldie.WithFixtureDir("testdata/golden"))
	g.Assert(t, "tf_splice", []byte(Dump(tg)))
}
