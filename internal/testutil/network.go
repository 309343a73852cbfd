package testutil

import (
	"fmt"
	"strings"
)

// AffineComponent renders an affine component declaration whose weight
// matrix is the identity padded with 0.1 and whose bias is all 0.5.
func AffineComponent(name string, outDim, inDim int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "component name=%s type=AffineComponent <LinearParams> [\n", name)
	for r := 0; r < outDim; r++ {
		for c := 0; c < inDim; c++ {
			if c > 0 {
				b.WriteString(" ")
			}
			if r == c {
				b.WriteString("1.0")
			} else {
				b.WriteString("0.1")
			}
		}
		b.WriteString("\n")
	}
	b.WriteString("]\n<BiasParams> [")
	for r := 0; r < outDim; r++ {
		b.WriteString(" 0.5")
	}
	b.WriteString(" ]\n")
	return b.String()
}

// ReluComponent renders a rectified-linear component declaration.
func ReluComponent(name string, dim int) string {
	return fmt.Sprintf("component name=%s type=RectifiedLinearComponent <Dim> %d\n", name, dim)
}

// TwoLayerNetwork renders the reference model used across packages: a
// 4-dimensional input, a first layer splicing frames {-5, 0, +5}, and a
// second layer splicing {-5, 0}, for ten frames of left context and
// five of right.
func TwoLayerNetwork() string {
	var b strings.Builder
	b.WriteString("input-node name=input dim=4\n")
	b.WriteString(AffineComponent("tdnn1.affine", 3, 12))
	b.WriteString(ReluComponent("tdnn1.relu", 3))
	b.WriteString(AffineComponent("tdnn2.affine", 2, 6))
	b.WriteString("component-node name=tdnn1.affine component=tdnn1.affine " +
		"input=Append(Offset(input, -5), input, Offset(input, 5))\n")
	b.WriteString("component-node name=tdnn1.relu component=tdnn1.relu input=tdnn1.affine\n")
	b.WriteString("component-node name=tdnn2.affine component=tdnn2.affine " +
		"input=Append(Offset(tdnn1.relu, -5), tdnn1.relu)\n")
	b.WriteString("output-node name=output input=tdnn2.affine\n")
	return b.String()
}
