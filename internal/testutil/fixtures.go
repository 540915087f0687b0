// internal/testutil/fixtures.go
package testutil

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

// Version outputs as printed by the real tools.
const (
	JavaVersion21 = `openjdk version "21.0.2" 2024-01-16
OpenJDK Runtime Environment (build 21.0.2+13-Ubuntu-122.04.1)
OpenJDK 64-Bit Server VM (build 21.0.2+13-Ubuntu-122.04.1, mixed mode, sharing)
`
	JavaVersion17 = `openjdk version "17.0.10" 2024-01-16
OpenJDK Runtime Environment (build 17.0.10+7-Ubuntu-122.04.1)
`
	NodeVersion22 = "v22.11.0\n"
	NodeVersion16 = "v16.20.2\n"
	PylspVersion  = "pylsp v1.12.0\n"
	TSLSVersion   = "4.3.3\n"
	PhpactorInfo  = "Phpactor 2024.06.30.0\n"
)

// JdtlsFiles is a minimal layout of an extracted JDT LS snapshot.
var JdtlsFiles = map[string]string{
	"plugins/org.eclipse.equinox.launcher_1.6.900.v20240613-2009.jar": "jar",
	"config_linux/config.ini":                                          "osgi.bundles=...",
	"bin/jdtls":                                                         "#!/usr/bin/env python3\n",
}

// TarGz builds a gzip-compressed tar archive from name → content.
func TarGz(t testing.TB, files map[string]string) []byte {
	t.Helper()

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for _, name := range names {
		body := files[name]
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     name,
			Mode:     0o644,
			Size:     int64(len(body)),
			Typeflag: tar.TypeReg,
		}))
		_, err := tw.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}
