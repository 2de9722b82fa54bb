// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package output

import (
	"fmt"

	vidio "github.com/AlexEidt/Vidio"
)

// Extensions supported for output images. The encoder is picked off the
// destination path's extension.
var SupportedExtensions = []string{"jpg", "png"}

// ExtensionSupported reports whether ext names a supported image format.
func ExtensionSupported(ext string) bool {
	for _, e := range SupportedExtensions {
		if e == ext {
			return true
		}
	}
	return false
}

// WriteImage encodes an RGBA pixel buffer to path.
func WriteImage(path string, width, height int, pix []byte) error {
	if err := vidio.Write(path, width, height, pix); err != nil {
		return fmt.Errorf("WriteImage() %s: %w", path, err)
	}
	return nil
}
