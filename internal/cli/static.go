package cli

// defaultConfigFileContent mirrors the documented defaults. It is used
// when no configuration file is found and is written to the snap data
// directory on first run.
const defaultConfigFileContent = `version: 1
server:
  addr: 0.0.0.0
  listen: 0.0.0.0:7878
  rtcp: true
  reuseport: true
  port:
    min: 10000
    max: 20000
`
