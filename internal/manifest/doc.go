// Package manifest loads unit definitions from an HCL manifest file.
//
// A manifest declares one block per image unit:
//
//	unit "base" {
//	    base    = "docker.io/library/ubuntu:24.04"
//	    context = "base"
//	    build   = <<-EOT
//	        apt-get update
//	        apt-get install -y build-essential
//	    EOT
//	}
//
//	unit "python" {
//	    requires = ["base"]
//	    build    = "apt-get install -y python3"
//	}
//
// The build text is opaque recipe payload; nothing here interprets it.
package manifest
