// Copyright 2021 FabEdge Team
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package test

import (
	"flag"
	"os"
	"strings"
	"sync"

	"k8s.io/klog/v2"
)

var setupOnce sync.Once

// SetupLogger sets klog verbosity from LOG_LEVEL, default -1 keeps test output quiet
func SetupLogger() {
	setupOnce.Do(func() {
		level, ok := os.LookupEnv("LOG_LEVEL")
		if !ok {
			level = "-1"
		}

		if flag.Lookup("v") == nil {
			klog.InitFlags(nil)
		}
		_ = flag.Set("v", level)
	})
}

// SampleDump is a trimmed iptables-save output of a docker host
const SampleDump = `# Generated by iptables-save v1.8.7 on Sat Sep  2 23:44:00 2017
*nat
:PREROUTING ACCEPT [12:720]
:INPUT ACCEPT [0:0]
:OUTPUT ACCEPT [4:240]
:POSTROUTING ACCEPT [4:240]
:DOCKER - [0:0]
-A PREROUTING -m addrtype --dst-type LOCAL -j DOCKER
-A OUTPUT ! -d 127.0.0.0/8 -m addrtype --dst-type LOCAL -j DOCKER
-A POSTROUTING -s 172.17.0.0/16 ! -o docker0 -j MASQUERADE
-A DOCKER -i docker0 -j RETURN
COMMIT
# Completed on Sat Sep  2 23:44:00 2017
# Generated by iptables-save v1.8.7 on Sat Sep  2 23:44:00 2017
*filter
:INPUT DROP [0:0]
:FORWARD DROP [0:0]
:OUTPUT ACCEPT [100:5000]
:DOCKER - [0:0]
-A INPUT -i lo -j ACCEPT
-A INPUT -m conntrack --ctstate RELATED,ESTABLISHED -j ACCEPT
-A INPUT -p tcp -m tcp --dport 22 -m comment --comment "allow ssh" -j ACCEPT
-A INPUT -p icmp -m icmp --icmp-type 8 -j ACCEPT
-A FORWARD -o docker0 -j DOCKER
-A FORWARD -s 10.0.0.0/8 ! -d 10.0.0.1 -j REJECT --reject-with icmp-port-unreachable
-A DOCKER -d 172.17.0.2/32 ! -i docker0 -o docker0 -p tcp -m tcp --dport 80 -g DOCKER-WEB
COMMIT
# Completed on Sat Sep  2 23:44:00 2017
`

// SampleLines returns SampleDump split into lines, without the trailing empty line
func SampleLines() []string {
	return strings.Split(strings.TrimSuffix(SampleDump, "\n"), "\n")
}
