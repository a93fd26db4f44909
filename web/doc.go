// Copyright (c) FlowEdit Authors.
// Licensed under the MIT License.

/*
包 web 内嵌浏览器端编辑器页面。

页面只是一层薄客户端：把指针与滚轮事件转发到 /ws 上的 editor.* 命令，
并把服务端推送的 editor.render 渲染指令应用到 DOM。全部编辑逻辑在服务端。
*/
package web
