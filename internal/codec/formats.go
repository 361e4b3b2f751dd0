package codec

import (
	// Декодеры, которых нет в стандартной библиотеке.
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)
