// imgshrink сжимает изображения до заданного размера файла.
package main

import "github.com/artemshloyda/imgshrink/internal/cli"

func main() {
	cli.Execute()
}
