package web

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed static
var content embed.FS

// FS 返回静态资源根目录
func FS() fs.FS {
	sub, err := fs.Sub(content, "static")
	if err != nil {
		panic(err)
	}
	return sub
}

// Handler 以 http.FileServer 提供编辑器页面
func Handler() http.Handler {
	return http.FileServerFS(FS())
}
