// Package config provides configuration management for ocisaccept.
//
// Configuration is loaded from multiple sources and merged in a fixed order,
// with later sources overriding earlier ones:
//
//  1. Default configuration (compiled in)
//     - Targets https://localhost:9200 with the test wrapper on :5200
//
//  2. User configuration (~/.config/ocisaccept/config.yaml)
//
//  3. Project configuration (./.ocisaccept/config.yaml)
//
//  4. Environment variables
//     - TEST_SERVER_URL, OCIS_WRAPPER_URL, ADMIN_USERNAME, ADMIN_PASSWORD
//     - OCISACCEPT_CONFIG_BACKEND, OCISACCEPT_INSECURE, OCISACCEPT_TIMEOUT,
//     OCISACCEPT_TUS_ESCAPE_DOLLAR
//
// A file given with --config replaces layers 2 and 3.
//
// # Configuration Structure
//
//	server:
//	  baseURL: https://ocis.example.test
//	  insecure: true
//	  timeout: 30s
//	admin:
//	  username: admin
//	  password: admin
//	users:
//	  Alice: "123456"
//	wrapper:
//	  url: http://localhost:5200
//	reconfigure:
//	  backend: kubernetes
//	  kubernetes:
//	    namespace: ocis
//	    deployment: ocis
//	tus:
//	  escapeDollar: true
package config
