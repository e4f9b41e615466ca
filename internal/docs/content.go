package docs

var topics = []Topic{
	{
		Name:    "quickstart",
		Title:   "Quick Start",
		Summary: "Getting started with fleet",
		Content: topicQuickstart,
	},
	{
		Name:    "scoring",
		Title:   "Load Scoring",
		Summary: "How CPU, memory, and disk become a load score",
		Content: topicScoring,
	},
	{
		Name:    "selection",
		Title:   "Host Selection",
		Summary: "Picking the least loaded host and group preference",
		Content: topicSelection,
	},
	{
		Name:    "distribution",
		Title:   "Task Distribution",
		Summary: "Spreading weighted tasks across hosts",
		Content: topicDistribution,
	},
	{
		Name:    "plans",
		Title:   "Plans and Runs",
		Summary: "Saving distributions and executing them",
		Content: topicPlans,
	},
	{
		Name:    "config",
		Title:   "Configuration Reference",
		Summary: "Groups, ssh config, task files, and environment variables",
		Content: topicConfig,
	},
	{
		Name:    "troubleshooting",
		Title:   "Troubleshooting",
		Summary: "Excluded hosts, estimated fields, and fleet doctor",
		Content: topicTroubleshooting,
	},
}

const topicQuickstart = `Quick Start
===========

1. Scaffold example files:

    fleet init

   This creates .fleet/tasks.yaml, .fleet/groups.example.yaml and
   .fleet/fleet.env.

2. Define groups in ~/.config/sshsync/config.yaml (see 'fleet docs config')
   and make sure every host has a Host entry in ~/.ssh/config.

3. Check the fleet:

    fleet status
    fleet load --group web

4. Pick a host or spread work:

    fleet pick --group web
    fleet distribute --tasks .fleet/tasks.yaml --group web --save

5. Run the saved plan:

    fleet run-plan --dry-run
    fleet run-plan

CLI Commands
------------

  fleet load [hosts...]            Measure hosts (--group, --local)
  fleet pick [hosts...]            Select the least loaded host (--group, --prefer)
  fleet capacity <group>           Summarize a group's headroom
  fleet distribute                 Assign tasks to hosts (--tasks, --group, --save)
  fleet run-plan [plan]            Execute a saved plan (--dry-run, --only-failed)
  fleet restart <group> <service>  Rolling restart with health checks
  fleet status                     Host availability via sshsync (--tailnet adds latency)
  fleet exec <command>             Run a command on a group or all hosts
  fleet push <local> <remote>      Copy files to hosts
  fleet pull <host> <remote> <local>  Copy files from a host
  fleet backup [hosts...]          Pull paths into dest/<host>_<time> (--path, --dest)
  fleet sync <source> <group>      Copy paths from one host to a group (--path)
  fleet peers                      List tailnet peers
  fleet doctor [hosts...]          Diagnose connectivity or a failed run
  fleet serve                      Serve Prometheus metrics and /pick
  fleet init                       Scaffold example files
  fleet docs [topic]               Show documentation

Global flags: --verbose, --json, --env-file.
`

const topicScoring = `Load Scoring
============

Each host is probed over ssh with three commands:

  cpu     uptime
  memory  free -m        (falls back to vm_stat on macOS)
  disk    df -h / | tail -1

The 1-minute load average is turned into a CPU estimate:

  cpu% = load1 / cores * 100, clamped to 0..100

cores defaults to 4 and is set with FLEET_CORES.

The composite score is:

  score = (0.4*cpu + 0.3*memory + 0.3*disk) / 100

and is always between 0 and 1. Status thresholds:

  low        score < 0.4
  moderate   score < 0.7
  high       otherwise

Estimated fields
----------------

A field whose command fails or whose output cannot be parsed is set to
50%. The load report marks such fields as "estimated". A host whose three
fields are all estimated still scores 0.5 (moderate); only a host whose
probe fails outright is excluded.
`

const topicSelection = `Host Selection
==============

fleet pick probes every candidate concurrently (FLEET_CONCURRENCY, default 8)
and ranks them by score, lowest first. Ties keep candidate order.

With --prefer <group>, the best member of that group wins if its score is
at most 1.2 times the overall best. Otherwise the overall best wins.

  fleet pick --group web
  fleet pick --group web --prefer web-eu
  fleet pick web-01 web-02 db-01

Hosts that cannot be probed are listed with the reason they were excluded.
If no candidate can be measured, pick fails.
`

const topicDistribution = `Task Distribution
=================

fleet distribute assigns each task in a task file to a host:

1. Hosts are probed once.
2. Tasks are sorted by weight, heaviest first (stable).
3. Each task goes to the host with the lowest projected load.
4. That host's projected load rises by 0.1 times the task weight.

Weights default to 1. Hosts that cannot be probed receive no tasks.

Commands may use variables expanded per host when the plan runs:

  $HOST         the assigned host
  $GROUP        the group the plan was built for
  $TASK_INDEX   position of the task on its host, from 0

Other $NAMES are passed through to the remote shell untouched.
`

const topicPlans = `Plans and Runs
==============

fleet distribute --save writes a plan to FLEET_PLAN_DIR (default
.fleet/plans):

  plans/<id>.json              the assignment
  runs/<run-id>.json           outcome of each run-plan
  runs/<run-id>.timing.json    per-host timing
  logs/<run-id>/<host>.log     command output

A plan can be referenced by its id, a unique id prefix, a path, or
"latest" (the default).

  fleet run-plan                     run the latest plan
  fleet run-plan 3f2a --dry-run      show what would run
  fleet run-plan --only-failed       rerun hosts that failed last time
  fleet run-plan --continue-on-error keep going after a failed task

Each host runs its tasks in order; hosts run concurrently. By default a
host stops at its first failed task.
`

const topicConfig = `Configuration Reference
=======================

Groups
------

Groups are read from the sshsync config (FLEET_SSHSYNC_CONFIG, default
~/.config/sshsync/config.yaml):

  groups:
    web:
      - web-01
      - web-02
    db:
      - db-01

The file is re-read on every command. A missing file means no groups.

Hosts
-----

Host names must appear as Host entries in ~/.ssh/config
(FLEET_SSH_CONFIG). Wildcard entries are ignored.

Task files
----------

  name: nightly
  allow-dangerous: false
  tasks:
    - command: make -C /srv/app test
      weight: 3
    - command: echo $HOST

Negative weights are rejected. Destructive commands (rm -rf /, mkfs,
dd to a device, fork bombs) are rejected unless allow-dangerous is set.

Environment variables
---------------------

  FLEET_TIMEOUT          per-command timeout (default 10s, 1s..600s)
  FLEET_CONCURRENCY      parallel probes (default 8)
  FLEET_CORES            cores assumed for the CPU estimate (default 4)
  FLEET_SSHSYNC_CONFIG   sshsync config path
  FLEET_SSH_CONFIG       ssh config path
  FLEET_SSH_BIN          ssh binary (default ssh)
  FLEET_LOG_LEVEL        debug, info, warn, error (default info)
  FLEET_PLAN_DIR         plan directory (default .fleet/plans)

Values may also come from a .env file (--env-file). Variables already set
in the environment win.
`

const topicTroubleshooting = `Troubleshooting
===============

Excluded hosts
--------------

A host is excluded when its probe fails entirely, for example when ssh
cannot connect or the host is not in ~/.ssh/config. Excluded hosts are
listed with their reason and never receive work.

fleet doctor
------------

  fleet doctor web-01 db-01
  fleet doctor --group web

checks that ssh, sshsync and tailscale are installed, then for each host:

  1. the host is a tailnet peer and online
  2. tailscale ping succeeds (latency is classified)
  3. ssh runs a trivial command

Latency classes: excellent < 50ms, good < 100ms, fair < 200ms, else poor.

  fleet doctor --run latest

prints the failed tasks of the most recent run of a plan with the tail of
each failed host's log.

Logging
-------

--verbose or FLEET_LOG_LEVEL=debug writes structured JSON logs to stderr.
`
