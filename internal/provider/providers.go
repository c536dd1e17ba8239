// File: internal/provider/providers.go
package provider

// This file explicitly imports all provider implementation packages.
// The blank identifier (_) ensures that the init() function of each package runs,
// allowing them to register themselves with the central provider registry.
//
// To add a new provider, implement storage.ObjectStore in pkg/storage/<name>,
// self-register in its init() function, and add the import here.

import (
	_ "bucketmirror/pkg/storage/aws"
	_ "bucketmirror/pkg/storage/gcp"
	_ "bucketmirror/pkg/storage/minio"
)
