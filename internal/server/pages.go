package server

import "net/http"

// uploadField is the form field the ingest handler reads the file from.
const uploadField = "upload"

const formPage = `<html>
<head>
<meta http-equiv="Content-Type" content="text/html; charset=UTF-8" />
</head>
<body>
<form action="/upload" enctype="multipart/form-data" method="post">
<input type="file" name="` + uploadField + `">
<input type="submit" value="Upload file" />
</form>
</body>
</html>
`

const confirmPage = `<html>
<head>
<meta http-equiv="Content-Type" content="text/html; charset=UTF-8" />
</head>
<body>
received image:<br/>
<img src='/show'>
</body>
</html>
`

// formHandler serves the upload form on / and /start. The page is constant.
func formHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(formPage))
	})
}
