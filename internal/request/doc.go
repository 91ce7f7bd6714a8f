// Package request loads processing requests from their on-disk layout.
//
// A request directory contains a request.json descriptor plus one
// subdirectory per data type holding the imagery for that group:
//
//	data/
//	├── request_id_1/
//	│   ├── rgb/          images to orthorectify (22002)
//	│   ├── thermal/      images to orthorectify (22001)
//	│   └── request.json  request metadata
//	└── request_id_2/
//	    └── ...
//
// Validation failures here abort before any remote job is created.
package request
