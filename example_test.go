// SPDX-License-Identifier: EPL-2.0

package funcgen_test

import (
	"fmt"

	"github.com/ik5/funcgen"
	"github.com/ik5/funcgen/sample"
)

func ExampleVoltsToUnits() {
	fmt.Println(funcgen.VoltsToUnits(3.06, sample.S24LE))
	fmt.Println(funcgen.VoltsToUnits(1.53, sample.S16LE))
	// Output:
	// 8388607
	// 16383
}

func ExampleStreamConfig_Validate() {
	cfg := validConfig()
	cfg.Amplitude = 32767
	fmt.Println(cfg.Validate())
	// Output:
	// amplitude plus dc offset exceeds the format range: 32767 + 100 > 32767
}
